package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"invoicehound/app"
	"invoicehound/config"
	"invoicehound/mailbox"
	"invoicehound/search"
	"invoicehound/search/pdf"
)

func main() {
	args, err := parseArguments(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		showUsage()
		os.Exit(2)
	}

	// Credentials may live in a .env next to the binary or cwd.
	_ = godotenv.Load()

	log := newLogger(args.Plain)

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		log.Warn().Err(err).Msg("config not loaded, using defaults")
	}

	store := search.NewFoundStore(search.DefaultFoundPath(), log)
	if args.ListFound {
		app.PrintFound(store)
		return
	}

	acct := buildAccount(args, cfg.Mail)

	if args.TestConn {
		if err := testConnection(acct, log); err != nil {
			fmt.Fprintln(os.Stderr, "Connection test failed:", err)
			os.Exit(1)
		}
		fmt.Println("Connection OK:", acct.Addr())
		return
	}

	criteria := buildCriteria(args, cfg.Search)

	client, err := mailbox.Dial(acct, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	chain := pdf.NewChain(criteria.EnginePref, log)
	engine := search.NewEngine(client, criteria, chain, store, log)
	if err := engine.Start(); err != nil {
		client.Close()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}

	var summary *search.Summary
	if args.Plain {
		summary, err = app.RunPlain(engine)
	} else {
		summary, err = app.Run(engine, criteria.Identifier, criteria.OutputDir)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if summary != nil && summary.State == search.StateFailed {
		os.Exit(1)
	}
}

// newLogger writes human-readable lines to stderr (unless the TUI owns
// the terminal) and JSON to a rotated file in the user's home.
func newLogger(plain bool) zerolog.Logger {
	fileOut := &lumberjack.Logger{
		Filename:   filepath.Join(logDir(), ".invoicehound.log"),
		MaxSize:    5, // MB
		MaxBackups: 3,
	}
	writers := []io.Writer{fileOut}
	if plain {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
}

func logDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// buildAccount layers flags over environment over the config file.
func buildAccount(args *Arguments, mc config.Mail) mailbox.Account {
	acct := mailbox.Account{
		Protocol: mailbox.Protocol(mc.Protocol),
		Server:   mc.Server,
		Port:     mc.Port,
		Email:    mc.Email,
		Password: mc.Password,
		UseSSL:   mc.SSL(),
	}
	if v := os.Getenv("MAIL_SERVER"); v != "" {
		acct.Server = v
	}
	if v := os.Getenv("MAIL_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			acct.Port = n
		}
	}
	if v := os.Getenv("MAIL_PROTOCOL"); v != "" {
		acct.Protocol = mailbox.Protocol(v)
	}
	if v := os.Getenv("MAIL_USER"); v != "" {
		acct.Email = v
	}
	if v := os.Getenv("MAIL_PASSWORD"); v != "" {
		acct.Password = v
	}

	if args.Protocol != "" {
		acct.Protocol = mailbox.Protocol(args.Protocol)
	}
	if args.Server != "" {
		acct.Server = args.Server
	}
	if args.Port != 0 {
		acct.Port = args.Port
	}
	if args.Email != "" {
		acct.Email = args.Email
	}
	if args.Password != "" {
		acct.Password = args.Password
	}
	if args.NoSSL {
		acct.UseSSL = false
	}
	if acct.Port == 0 {
		acct.Port = defaultPort(acct.Protocol, acct.UseSSL)
	}
	return acct
}

func defaultPort(p mailbox.Protocol, ssl bool) int {
	switch p {
	case mailbox.ProtocolPOP3:
		if ssl {
			return 995
		}
		return 110
	default:
		if ssl {
			return 993
		}
		return 143
	}
}

func buildCriteria(args *Arguments, sc config.Search) search.Criteria {
	c := search.Criteria{
		Identifier:      sc.Identifier,
		FolderPath:      sc.FolderPath,
		ExcludedFolders: sc.ExcludedFolders,
		OutputDir:       sc.OutputDir,
		MonthFolders:    sc.MonthFolders,
		Policy:          search.CollisionPolicy(sc.Collision),
		EnginePref:      sc.Engine,
		ArchiveMbox:     sc.ArchiveMbox,
		SaveEML:         true,
	}
	if args.Identifier != "" {
		c.Identifier = args.Identifier
	}
	if args.FolderPath != "" {
		c.FolderPath = args.FolderPath
	}
	if len(args.ExcludedFolders) > 0 {
		c.ExcludedFolders = append(c.ExcludedFolders, args.ExcludedFolders...)
	}
	if args.OutputDir != "" {
		c.OutputDir = args.OutputDir
	}
	if args.MonthFolders {
		c.MonthFolders = true
	}
	if args.Overwrite {
		c.Policy = search.CollisionOverwrite
	}
	if args.Engine != "" {
		c.EnginePref = args.Engine
	}
	if args.ArchiveMbox {
		c.ArchiveMbox = true
	}
	c.DateFrom = args.DateFrom
	c.DateTo = args.DateTo
	c.LastDays = args.LastDays
	return c
}

// testConnection does a dial/close round trip so users can verify
// credentials before a long run.
func testConnection(acct mailbox.Account, log zerolog.Logger) error {
	client, err := mailbox.Dial(acct, log)
	if err != nil {
		return err
	}
	return client.Close()
}
