// Command gm is the game master: it admits a fixed number of dice players
// over TCP, runs timed rounds between them and appends every round's
// result to a report file.
package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "--help", "-h", "help":
			printUsage()
			return
		case "--version", "-v", "version":
			fmt.Println("gm", version)
			return
		case "journal":
			os.Exit(cmdJournal(args[1:]))
		}
	}
	os.Exit(cmdServe(args))
}

func printUsage() {
	fmt.Print(`gm - game master for timed dice rounds over TCP

Usage:
  gm [variant] [round-seconds] [players] [bind-address]
  gm journal [--db PATH] [--session ID] [--limit N] [--list] [--json]
  gm version

Variants:
  A   plain: START/STOP carry no clock, every throw counts
  B   causal: START/STOP carry a Lamport time; throws are only counted
      when their Lamport time lies strictly between the two

Defaults: A 10 3 127.0.0.1:7878. An argument that cannot be parsed keeps
its default.

Environment:
  GAMEMASTER_CONFIG         YAML config file (default: gamemaster.yaml, optional)
  GAMEMASTER_VARIANT        A or B
  GAMEMASTER_ROUND_SECONDS  round length in seconds
  GAMEMASTER_PARTICIPANTS   number of players to wait for
  GAMEMASTER_LISTEN         bind address
  GAMEMASTER_REPORT         report file (default: output.txt)
  GAMEMASTER_JOURNAL        session journal (default: .gamemaster/journal.db, "off" disables)
  GAMEMASTER_NATS_URL       publish round reports to NATS when set
  GAMEMASTER_NATS_SUBJECT   subject prefix (default: gamemaster.rounds)
  GAMEMASTER_LOG_LEVEL      debug, info, warn, error

A .env file in the working directory is loaded first.
`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "gm: "+format+"\n", args...)
	os.Exit(1)
}
