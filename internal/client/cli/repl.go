package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Refresh(ctx context.Context) error
	Status(ctx context.Context) error
	Cash(ctx context.Context) error
	Logout(ctx context.Context) error
	Hash(ctx context.Context) error
}

// runREPL starts a read-eval-print loop for the cashkeeper CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. The loop exits on EOF or when the user types
// "exit" or "quit". Command prompts read from the same reader, so input is
// never split between two buffers.
//
//	Not logged in:
//	  - help           show available commands
//	  - login          authenticate
//	  - hash           print a registry hash for a password
//	  - exit | quit    leave the program
//
//	Logged in:
//	  - help           show available commands
//	  - status         show the session seen by the server
//	  - cash           show reconciled balances
//	  - refresh        renew the access token
//	  - logout         forget the tokens
//	  - hash           print a registry hash for a password
//	  - exit | quit    leave the program
//
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("ck (%s)> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: status, cash, refresh, logout, hash, exit")
			} else {
				printlnFn("Available commands: login, hash, exit")
			}

		case "login":
			cmdErr = a.Login(ctx)

		case "refresh":
			cmdErr = a.Refresh(ctx)

		case "status":
			cmdErr = a.Status(ctx)

		case "cash":
			cmdErr = a.Cash(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "hash":
			cmdErr = a.Hash(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
