package server

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mytask/internal/auth"
	"mytask/internal/domain/errors"
	"mytask/internal/domain/models"
	"mytask/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator"
)

type TaskAPI struct {
	httpSrv *http.Server
	tasks   *service.TaskService
	auth    *service.AuthService
	tokens  TokenValidator
	log     *slog.Logger
}

type options struct {
	hasher service.PasswordHasher
}

type Option func(*options)

// WithPasswordHasher replaces the default bcrypt hasher.
func WithPasswordHasher(h service.PasswordHasher) Option {
	return func(o *options) { o.hasher = h }
}

var validate = validator.New()

func NewTaskAPI(users service.UserStore, tasks service.TaskStore, cfg *Config, log *slog.Logger, opts ...Option) *TaskAPI {
	if users == nil || tasks == nil || cfg == nil {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}

	o := options{hasher: auth.NewPasswordHasher(0)}
	for _, opt := range opts {
		opt(&o)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = defaultJWTSecret
	}
	tokens := auth.NewTokenManager(secret, cfg.TokenTTL)

	addr := cfg.ListenAddr()
	if cfg.Port == 0 {
		addr = ":8080"
	}

	api := &TaskAPI{
		httpSrv: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		tasks:  service.NewTaskService(tasks, log),
		auth:   service.NewAuthService(users, o.hasher, tokens, log),
		tokens: tokens,
		log:    log,
	}
	api.configRoutes()

	return api
}

func (api *TaskAPI) Handler() http.Handler {
	return api.httpSrv.Handler
}

func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}
	if err := api.httpSrv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) configRoutes() {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), RequestLogger(api.log))

	router.NoMethod(func(ctx *gin.Context) {
		ctx.JSON(http.StatusMethodNotAllowed, errors.MethodNotAllowed("Method not allowed"))
	})
	router.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, errors.NotFound("Route not found"))
	})

	router.GET("/health", api.health)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", api.login)
		authGroup.POST("/register", api.register)
	}

	tasks := router.Group("/tasks", AuthRequired(api.tokens, api.log))
	{
		tasks.GET("", api.getTasks)
		tasks.POST("", api.createTask)
		tasks.PUT("/:taskID", api.updateTask)
		tasks.DELETE("/:taskID", api.deleteTask)
	}

	api.httpSrv.Handler = router
}

func (api *TaskAPI) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}

func (api *TaskAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, errors.Validation("Invalid request body"))
		return
	}
	if err := validate.Struct(req); err != nil {
		api.respondError(ctx, errors.Validation(validationErrorToMessage(err)))
		return
	}

	resp, err := api.auth.Login(ctx.Request.Context(), req)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

func (api *TaskAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, errors.Validation("Invalid request body"))
		return
	}
	if err := validate.Struct(req); err != nil {
		api.respondError(ctx, errors.Validation(validationErrorToMessage(err)))
		return
	}

	if _, err := api.auth.Register(ctx.Request.Context(), req); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, models.MessageResponse{Message: service.MsgUserRegistered})
}

func (api *TaskAPI) getTasks(ctx *gin.Context) {
	id, ok := identityFrom(ctx)
	if !ok {
		api.respondError(ctx, errors.Unauthorized("Authentication required"))
		return
	}

	tasks, err := api.tasks.List(ctx.Request.Context(), id)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, tasks)
}

func (api *TaskAPI) createTask(ctx *gin.Context) {
	id, ok := identityFrom(ctx)
	if !ok {
		api.respondError(ctx, errors.Unauthorized("Authentication required"))
		return
	}

	var req models.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, errors.Validation("Invalid request body"))
		return
	}

	task, err := api.tasks.Create(ctx.Request.Context(), id, req)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, task)
}

func (api *TaskAPI) updateTask(ctx *gin.Context) {
	id, ok := identityFrom(ctx)
	if !ok {
		api.respondError(ctx, errors.Unauthorized("Authentication required"))
		return
	}

	var patch models.TaskPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil && !stderrors.Is(err, io.EOF) {
		api.respondError(ctx, errors.Validation("Invalid request body"))
		return
	}

	task, err := api.tasks.Update(ctx.Request.Context(), id, ctx.Param("taskID"), patch)
	if err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, task)
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	id, ok := identityFrom(ctx)
	if !ok {
		api.respondError(ctx, errors.Unauthorized("Authentication required"))
		return
	}

	if err := api.tasks.Delete(ctx.Request.Context(), id, ctx.Param("taskID")); err != nil {
		api.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.MessageResponse{Message: service.MsgTaskDeleted})
}

// respondError writes the kinded error body. Causes of store errors are never
// serialised; the service has already logged them.
func (api *TaskAPI) respondError(ctx *gin.Context, err error) {
	ctx.JSON(errors.HTTPStatus(errors.KindOf(err)), errorBody(err))
}

func validationErrorToMessage(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			switch verr.Field() {
			case "Name":
				return "Name must be between 2 and 50 characters"
			case "Email":
				return "A valid email of at most 50 characters is required"
			case "Password":
				if verr.Tag() == "max" {
					return "Password must be at most 72 bytes"
				}
				return "Password must be at least 6 characters"
			}
		}
	}
	return "Validation failed"
}
