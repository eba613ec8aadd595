package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var version = "0.1"

var (
	usageHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	usageTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff")).Bold(true)
	versionStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")).Bold(true)
)

// Arguments for CLI flags (overrides on top of the config file)
type Arguments struct {
	Protocol string
	Server   string
	Port     int
	Email    string
	Password string
	NoSSL    bool

	Identifier string
	DateFrom   time.Time
	DateTo     time.Time
	LastDays   int

	FolderPath      string
	ExcludedFolders []string
	OutputDir       string
	MonthFolders    bool
	Overwrite       bool
	Engine          string
	ArchiveMbox     bool

	Plain     bool
	TestConn  bool
	ListFound bool
}

// parseArguments parses command line args
func parseArguments(args []string) (*Arguments, error) {
	result := &Arguments{}

	expect := "" // name of the flag waiting for its value
	for _, a := range args {
		if expect != "" {
			if err := result.consume(expect, a); err != nil {
				return nil, err
			}
			expect = ""
			continue
		}
		switch a {
		case "--server", "--port", "--protocol", "--user", "--password",
			"--nip", "--from", "--to", "--last", "--folder", "--exclude",
			"--out", "--engine":
			expect = a
		case "--no-ssl":
			result.NoSSL = true
		case "--months":
			result.MonthFolders = true
		case "--overwrite":
			result.Overwrite = true
		case "--archive":
			result.ArchiveMbox = true
		case "--plain":
			result.Plain = true
		case "--test":
			result.TestConn = true
		case "--found":
			result.ListFound = true
		case "--help", "-h":
			showUsage()
			os.Exit(0)
		case "--version", "-v":
			showVersion()
			os.Exit(0)
		default:
			return nil, fmt.Errorf("unknown argument %q", a)
		}
	}
	if expect != "" {
		return nil, fmt.Errorf("flag %s needs a value", expect)
	}
	return result, nil
}

func (r *Arguments) consume(flag, value string) error {
	switch flag {
	case "--server":
		r.Server = value
	case "--port":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("bad port %q", value)
		}
		r.Port = n
	case "--protocol":
		r.Protocol = strings.ToUpper(value)
	case "--user":
		r.Email = value
	case "--password":
		r.Password = value
	case "--nip":
		r.Identifier = value
	case "--from":
		t, err := parseDateFlag(value)
		if err != nil {
			return err
		}
		r.DateFrom = t
	case "--to":
		t, err := parseDateFlag(value)
		if err != nil {
			return err
		}
		r.DateTo = t
	case "--last":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("bad day count %q", value)
		}
		r.LastDays = n
	case "--folder":
		r.FolderPath = value
	case "--exclude":
		r.ExcludedFolders = append(r.ExcludedFolders, value)
	case "--out":
		r.OutputDir = value
	case "--engine":
		r.Engine = strings.ToLower(value)
	}
	return nil
}

// parseDateFlag accepts YYYY-MM-DD and DD.MM.YYYY.
func parseDateFlag(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02.01.2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q (want YYYY-MM-DD)", value)
}

// showUsage (basic)
func showUsage() {
	fmt.Println(usageHeaderStyle.Render("invoicehound - find invoice PDFs by NIP in your mailbox"))
	fmt.Println()
	fmt.Println(usageTitleStyle.Render("USAGE:"))
	fmt.Println("  invoicehound --nip NUMBER --out DIR [options]")
	fmt.Println()
	fmt.Println(usageTitleStyle.Render("ACCOUNT:"))
	fmt.Println("  --server HOST     mail server (or config/env)")
	fmt.Println("  --port N          server port")
	fmt.Println("  --protocol P      IMAP (default), POP3 or EXCHANGE")
	fmt.Println("  --user EMAIL      account login")
	fmt.Println("  --password PASS   account password (prefer .env or config)")
	fmt.Println("  --no-ssl          disable TLS")
	fmt.Println()
	fmt.Println(usageTitleStyle.Render("SEARCH:"))
	fmt.Println("  --nip NUMBER      tax identifier to look for")
	fmt.Println("  --from DATE       start date, inclusive (YYYY-MM-DD)")
	fmt.Println("  --to DATE         end date, inclusive")
	fmt.Println("  --last N          search the last N days instead")
	fmt.Println("  --folder PATH     start folder (default: whole account)")
	fmt.Println("  --exclude NAME    skip folders with this name (repeatable)")
	fmt.Println("  --engine E        auto (default), textlayer, ocr, fallback")
	fmt.Println()
	fmt.Println(usageTitleStyle.Render("OUTPUT:"))
	fmt.Println("  --out DIR         where matched PDFs are saved")
	fmt.Println("  --months          sort into MM.YYYY subfolders")
	fmt.Println("  --overwrite       replace name collisions instead of suffixing")
	fmt.Println("  --archive         also append matched mail to found.mbox")
	fmt.Println()
	fmt.Println(usageTitleStyle.Render("MODES:"))
	fmt.Println("  --plain           no TUI, line-oriented output")
	fmt.Println("  --test            only test the connection and exit")
	fmt.Println("  --found           list previously found invoices and exit")
	fmt.Println()
}

// showVersion
func showVersion() {
	fmt.Println(versionStyle.Render("invoicehound v" + version))
}
