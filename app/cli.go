package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"invoicehound/search"
)

// RunPlain drives a started engine without the TUI, for piped output
// and non-interactive shells. Ctrl-C requests a cooperative cancel; a
// second Ctrl-C kills the process the usual way.
func RunPlain(engine *search.Engine) (*search.Summary, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCancelling, finishing current message...")
		engine.Cancel()
		signal.Stop(sigCh)
	}()

	var lastFolder string
	for ev := range engine.Events() {
		switch ev.Kind {
		case search.EventProgress:
			if ev.Folder != lastFolder {
				fmt.Printf("Folder %s (%d messages)\n", ev.Folder, ev.Total)
				lastFolder = ev.Folder
			}
		case search.EventLog:
			fmt.Println(ev.Message)
		case search.EventFound:
			fmt.Printf("FOUND %s (%s, %s)\n  -> %s\n",
				ev.Found.Filename, ev.Found.Sender, ev.Found.Date, ev.Found.FilePath)
		case search.EventDone:
			s := ev.Summary
			switch s.State {
			case search.StateCompleted:
				fmt.Printf("Done: %d invoice(s) found in %d message(s), %.1fs\n",
					s.Found, s.Checked, s.Duration.Seconds())
			case search.StateCancelled:
				fmt.Printf("Cancelled: %d invoice(s) saved before stop\n", s.Found)
			case search.StateFailed:
				fmt.Printf("Failed: %v\n", s.Err)
			}
			return s, nil
		}
	}
	return nil, fmt.Errorf("event stream ended without a summary")
}

// PrintFound lists previously found invoices from the store.
func PrintFound(store *search.FoundStore) {
	records := store.Load()
	if len(records) == 0 {
		fmt.Println("No invoices found yet.")
		return
	}
	for i, r := range records {
		fmt.Printf("%d. %s (%s)\n   %s • %s\n   %s\n",
			i+1, r.Filename, r.Date, r.Sender, r.Subject, r.FilePath)
	}
}
