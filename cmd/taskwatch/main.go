// Taskwatch CLI entry point
//
// Taskwatch is a client for the task API that keeps a local view of
// the board in sync through the server's event stream, reconciling a
// local cache as create/update/delete events arrive.
package main

import "github.com/preludium/taskwatch/internal/presentation/cli/commands"

func main() {
	commands.Execute()
}
