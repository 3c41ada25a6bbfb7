package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/daviddao/gamemaster/pkg/config"
	"github.com/daviddao/gamemaster/pkg/model"
	"github.com/daviddao/gamemaster/pkg/store"
)

// journalQuery selects what cmdJournal prints.
type journalQuery struct {
	sessionID string
	limit     int
	list      bool
	jsonOut   bool
}

func cmdJournal(args []string) int {
	cfg, err := config.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gm: journal: %v\n", err)
		return 1
	}

	flags := flag.NewFlagSet("journal", flag.ContinueOnError)
	dbPath := flags.String("db", cfg.JournalPath, "journal database path")
	var q journalQuery
	flags.StringVar(&q.sessionID, "session", "", "session ID (default: latest)")
	flags.IntVar(&q.limit, "limit", 100, "max broadcasts to show")
	flags.BoolVar(&q.list, "list", false, "list recent sessions")
	flags.BoolVar(&q.jsonOut, "json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	if *dbPath == config.JournalOff {
		fmt.Fprintln(os.Stderr, "gm: journal: the journal is disabled (journal_path is off)")
		return 1
	}
	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "gm: journal: %v\n", err)
		return 1
	}
	s, err := store.New(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gm: journal: %v\n", err)
		return 1
	}
	defer s.Close()

	return showJournal(s, q)
}

func showJournal(s store.StoreInterface, q journalQuery) int {
	if q.list {
		sessions, err := s.ListSessions(q.limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gm: journal: %v\n", err)
			return 1
		}
		if q.jsonOut {
			printJSON(map[string]interface{}{"sessions": sessions, "count": len(sessions)})
			return 0
		}
		if len(sessions) == 0 {
			fmt.Println("no sessions")
		}
		for _, sess := range sessions {
			printSession(&sess)
		}
		return 0
	}

	var sess *model.Session
	var err error
	if q.sessionID != "" {
		sess, err = s.GetSession(q.sessionID)
	} else {
		sess, err = s.LatestSession()
	}
	if errors.Is(err, sql.ErrNoRows) {
		fmt.Fprintln(os.Stderr, "gm: journal: no such session")
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "gm: journal: %v\n", err)
		return 1
	}

	participants, err := s.ListParticipants(sess.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gm: journal: %v\n", err)
		return 1
	}
	events, err := s.ListEvents(sess.ID, 0, q.limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gm: journal: %v\n", err)
		return 1
	}

	if q.jsonOut {
		printJSON(map[string]interface{}{
			"session":      sess,
			"participants": participants,
			"events":       events,
		})
		return 0
	}

	printSession(sess)
	fmt.Println("participants:")
	for _, p := range participants {
		printParticipant(p)
	}
	if len(events) == 0 {
		fmt.Println("broadcasts: none")
		return 0
	}
	fmt.Println("broadcasts:")
	for _, e := range events {
		printEvent(e)
	}
	return 0
}

func printSession(s *model.Session) {
	fmt.Printf("session %s variant=%s players=%d round=%ds listen=%s started=%s\n",
		s.ID, s.Variant, s.Participants, s.RoundSeconds, s.Listen,
		s.StartedAt.Format("2006-01-02 15:04:05"))
}

func printParticipant(p model.Participant) {
	if p.LeftAt == nil {
		fmt.Printf("  #%-3d %-22s connected\n", p.Seq, p.RemoteAddr)
		return
	}
	fmt.Printf("  #%-3d %-22s left at %s (%s)\n",
		p.Seq, p.RemoteAddr, p.LeftAt.Format("15:04:05"), p.Reason)
}

func printEvent(e model.Event) {
	switch e.Kind {
	case model.EventStart:
		fmt.Printf("  [ts=%d] round %d START\n", e.LamportTS, e.Round)
	case model.EventStop:
		fmt.Printf("  [ts=%d] round %d STOP\n", e.LamportTS, e.Round)
	default:
		fmt.Printf("  [ts=%d] round %d %s\n", e.LamportTS, e.Round, e.Kind)
	}
}
