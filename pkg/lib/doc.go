// Package lib provides a Go SDK to run browser automation templates programmatically.
//
// A template is a list of declarative steps (navigate, click, type, scroll,
// wait, extract) with `{{variable}}` placeholders. A task is one execution of a
// template on a browser profile: the SDK launches the browser with the profile,
// drives it through the Chrome DevTools Protocol and records the progress and
// logs of every step.
//
// # Quick Start
//
// Create a client, run a template file and follow its logs:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	task, err := client.RunTask(ctx, lib.StartTaskOpts{
//	    TemplateFile: "./search.yaml",
//	    ProfilePath:  "/home/me/.config/profiles/p1",
//	    Variables:    map[string]any{"keyword": "shoes"},
//	}, &lib.WaitTaskOpts{
//	    OnLog: func(l lib.LogEntry) { fmt.Println(l.Level, l.Message) },
//	})
//
// # Tasks
//
// [Client.StartTask] returns as soon as the task is registered, the execution
// runs in background. Follow it with [Client.WaitTask], poll it with
// [Client.GetTask] and stop it with [Client.CancelTask]. Cancellation is
// cooperative: the task is marked as cancelled right away and the execution
// stops before its next step.
//
// A failing step doesn't fail the task, it's logged and the execution goes on.
// Only browser launch and connection errors fail a task.
//
// # Template Catalog
//
// Templates can be imported into a SQLite catalog and run by ID:
//
//	client.ImportTemplate(ctx, "./search.yaml", &lib.ImportTemplateOpts{Replace: true})
//	templates, _ := client.ListTemplates(ctx, nil)
//	client.StartTask(ctx, lib.StartTaskOpts{TemplateID: "search", ProfilePath: "/profiles/p1"})
//	client.RemoveTemplate(ctx, "search")
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Task or template does not exist.
//   - [ErrAlreadyExists]: Template with the same ID already exists.
//   - [ErrNotValid]: Invalid input (e.g. a missing required variable).
//   - [ErrTaskFinished]: Cancelling a task that already finished.
//
// # Testing
//
// Use [GatewayFake] and a temporary database path to run templates without a
// browser, every selector exists in the simulated page:
//
//	client, _ := lib.New(ctx, lib.Config{
//	    DBPath:  filepath.Join(t.TempDir(), "test.db"),
//	    Gateway: lib.GatewayFake,
//	})
//	defer client.Close()
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. Every task
// runs on its own goroutine, tasks are kept in memory for the client lifetime.
package lib
