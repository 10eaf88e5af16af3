// mytask is the command-line client for the task service. It keeps the
// session token in a local file and talks to the API over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"mytask/internal/client"
	"mytask/internal/domain/errors"
	"mytask/internal/domain/models"
	"mytask/internal/logger"

	"github.com/spf13/pflag"
)

const (
	defaultAPI = "http://localhost:8080"
	dateLayout = "2006-01-02"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", errorText(err))
		os.Exit(1)
	}
}

type app struct {
	out     io.Writer
	session *client.Session
	tasks   *client.TaskCache
	loc     *time.Location
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var apiURL, sessionPath, logLevel string

	flags := pflag.NewFlagSet("mytask", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SetInterspersed(false)
	flags.StringVar(&apiURL, "api", envOr("MYTASK_API", defaultAPI), "task API base URL (env MYTASK_API)")
	flags.StringVar(&sessionPath, "session", client.DefaultSessionPath(), "session file")
	flags.StringVar(&logLevel, "log-level", "warn", "log level for diagnostics on stderr")
	flags.Usage = func() { printUsage(stderr, flags) }

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg := logger.DefaultConfig()
	cfg.Level = logLevel
	log := slog.New(logger.NewHandler(stderr, cfg))

	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(stderr, flags)
		return errors.Validation("a command is required")
	}

	store := client.NewFileStore(sessionPath)
	api := client.NewAPIClient(apiURL, store)
	a := &app{
		out:     stdout,
		session: client.NewSession(store, api),
		tasks:   client.NewTaskCache(api, time.Local),
		loc:     time.Local,
	}

	cmd, cmdArgs := rest[0], rest[1:]
	log.Debug("running command", "command", cmd, "api", apiURL)

	switch cmd {
	case "register":
		return a.register(ctx, cmdArgs)
	case "login":
		return a.login(ctx, cmdArgs)
	case "logout":
		return a.logout()
	case "demo":
		return a.demo()
	case "whoami":
		return a.whoami()
	case "list", "ls":
		return a.list(ctx, cmdArgs)
	case "add":
		return a.add(ctx, cmdArgs)
	case "edit":
		return a.edit(ctx, cmdArgs)
	case "done":
		return a.setCompleted(ctx, cmdArgs, true)
	case "undo":
		return a.setCompleted(ctx, cmdArgs, false)
	case "rm", "delete":
		return a.remove(ctx, cmdArgs)
	default:
		printUsage(stderr, flags)
		return errors.Validation(fmt.Sprintf("unknown command %q", cmd))
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	var name, email, password string
	fs := pflag.NewFlagSet("register", pflag.ContinueOnError)
	fs.StringVar(&name, "name", "", "display name")
	fs.StringVar(&email, "email", "", "email address")
	fs.StringVar(&password, "password", "", "password (at least 6 characters)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.session.Register(ctx, name, email, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "User registered successfully. Run `mytask login` to sign in.")
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	var email, password string
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	fs.StringVar(&email, "email", "", "email address")
	fs.StringVar(&password, "password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := a.session.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", resp.User.Name)
	return nil
}

func (a *app) logout() error {
	if err := a.session.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *app) demo() error {
	if err := a.session.Demo(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", client.DemoUserName)
	return nil
}

func (a *app) whoami() error {
	if !a.session.IsAuthenticated() {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	fmt.Fprintln(a.out, a.session.UserName())
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	var date string
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	fs.StringVar(&date, "date", "", "only tasks due on this day (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var filter *time.Time
	if date != "" {
		day, err := a.parseDate(date)
		if err != nil {
			return err
		}
		filter = &day
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	if err := a.tasks.Load(ctx); err != nil {
		return err
	}
	a.tasks.SetFilter(filter)

	tasks := a.tasks.Visible()
	if len(tasks) == 0 {
		fmt.Fprintln(a.out, "No tasks")
		return nil
	}
	return a.printTasks(tasks)
}

func (a *app) add(ctx context.Context, args []string) error {
	var title, description, due string
	fs := pflag.NewFlagSet("add", pflag.ContinueOnError)
	fs.StringVar(&title, "title", "", "task title")
	fs.StringVar(&description, "description", "", "task description")
	fs.StringVar(&due, "due", "", "due date (YYYY-MM-DD, default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if title == "" && fs.NArg() > 0 {
		title = strings.Join(fs.Args(), " ")
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	req := models.CreateTaskRequest{Title: title, Description: description}
	if due != "" {
		day, err := a.parseDate(due)
		if err != nil {
			return err
		}
		req.DueDate = &day
	}

	task, err := a.tasks.Add(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s\n", task.ID)
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	var title, description, due string
	var completed bool
	fs := pflag.NewFlagSet("edit", pflag.ContinueOnError)
	fs.StringVar(&title, "title", "", "new title")
	fs.StringVar(&description, "description", "", "new description (may be empty)")
	fs.StringVar(&due, "due", "", "new due date (YYYY-MM-DD)")
	fs.BoolVar(&completed, "completed", false, "completion flag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := taskID(fs)
	if err != nil {
		return err
	}

	var patch models.TaskPatch
	if fs.Changed("title") {
		patch.Title = &title
	}
	if fs.Changed("description") {
		patch.Description = &description
	}
	if fs.Changed("due") {
		day, err := a.parseDate(due)
		if err != nil {
			return err
		}
		patch.DueDate = &day
	}
	if fs.Changed("completed") {
		patch.Completed = &completed
	}
	return a.update(ctx, id, patch)
}

func (a *app) setCompleted(ctx context.Context, args []string, completed bool) error {
	fs := pflag.NewFlagSet("done", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := taskID(fs)
	if err != nil {
		return err
	}
	return a.update(ctx, id, models.TaskPatch{Completed: &completed})
}

func (a *app) update(ctx context.Context, id string, patch models.TaskPatch) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	task, err := a.tasks.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	return a.printTasks([]models.Task{*task})
}

func (a *app) remove(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("rm", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := taskID(fs)
	if err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}
	if err := a.tasks.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Task deleted successfully")
	return nil
}

func (a *app) requireSession() error {
	if !a.session.IsAuthenticated() {
		return errors.Unauthorized("Not logged in. Run `mytask login` first.")
	}
	return nil
}

func (a *app) parseDate(s string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, s, a.loc)
	if err != nil {
		return time.Time{}, errors.Validation(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s))
	}
	return day, nil
}

func (a *app) printTasks(tasks []models.Task) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDUE\tDONE\tTITLE\tAUTHOR")
	for _, t := range tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		fmt.Fprintf(w, "%s\t%s\t[%s]\t%s\t%s\n", t.ID, t.DueDate.In(a.loc).Format(dateLayout), done, t.Title, t.Author)
	}
	return w.Flush()
}

func taskID(fs *pflag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", errors.Validation("exactly one task id is required")
	}
	return fs.Arg(0), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// errorText prefers the client-safe message carried by a kinded error.
func errorText(err error) string {
	if e, ok := errors.As(err); ok {
		return e.Message
	}
	return err.Error()
}

func printUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprint(w, `Usage: mytask [flags] <command> [args]

Commands:
  register --name N --email E --password P
  login --email E --password P
  logout
  demo                      store the demo session
  whoami
  list [--date YYYY-MM-DD]
  add --title T [--description D] [--due YYYY-MM-DD]
  edit ID [--title T] [--description D] [--due YYYY-MM-DD] [--completed]
  done ID | undo ID
  rm ID

Flags:
`)
	flags.SetOutput(w)
	flags.PrintDefaults()
}
