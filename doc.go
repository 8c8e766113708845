// Package runbox provides a sandboxed workspace execution backend: a
// persistent interactive shell session with prompt-sentinel completion
// detection, plus a stateful jupyter kernel client for code cells, wrapped
// in thin file, patch, test and stats services.
//
// End-users typically interact with the backend via the high-level Service
// facade exposed by the root package:
//
//	srv := runbox.New(runbox.WithConfig(cfg))
//	_ = srv.Initialize(ctx)
//	obs, _ := srv.Runtime().ExecuteAction(ctx, action.CmdRun{Command: "ls"})
//	fmt.Println(obs.Text())
//
// Each action yields exactly one observation. Predictable environment
// failures (missing file, broken cell) come back as descriptive content;
// protocol violations (busy, not ready, closed) come back as errors.
//
// For the HTTP surface see the server sub-package.
package runbox
