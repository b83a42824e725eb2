package bot

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"dutybot/internal/attendance"
	"dutybot/internal/config"
	"dutybot/internal/db"
	"dutybot/internal/durfmt"
	"dutybot/internal/locale"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/message"
)

type Bot struct {
	config    *config.Config
	db        *db.DB
	session   *discordgo.Session
	surface   *surface
	machine   *attendance.Machine
	scheduler *attendance.Scheduler
	board     *attendance.Leaderboard
	printer   *message.Printer
	durations *durfmt.Formatter

	promptMu sync.Mutex
	prompt   attendance.MessageHandle

	ctx        context.Context
	cancel     context.CancelFunc
	readyOnce  sync.Once
	shutdownCh chan struct{}
	isShutdown bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// New wires the attendance machine to a Discord session. database may be
// nil, in which case completed sessions are not archived.
func New(cfg *config.Config, database *db.DB) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	log.Printf("Bot intents: %d", session.Identify.Intents)

	tag := locale.Parse(cfg.Locale)
	printer := locale.Printer(tag)
	durations := durfmt.New(tag)

	g := newSurface(session, map[attendance.ChannelKind]string{
		attendance.ChannelClockBoard:  cfg.Channels.ClockBoard,
		attendance.ChannelWorklog:     cfg.Channels.Worklog,
		attendance.ChannelReminder:    cfg.Channels.Reminder,
		attendance.ChannelLeaderboard: cfg.Channels.Leaderboard,
	}, cfg.Roles.OnDuty)

	var archive attendance.Archive
	if database != nil {
		archive = database
	}

	ledger := attendance.NewLedger()
	board := attendance.NewLeaderboard(ledger, g, g, printer, durations.Format)
	machine := attendance.NewMachine(attendance.MachineConfig{
		Registry:    attendance.NewRegistry(),
		Ledger:      ledger,
		Notifier:    g,
		Roles:       g,
		Leaderboard: board,
		Archive:     archive,
		Printer:     printer,
		Format:      durations.Format,
		NoticeTTL:   cfg.Attendance.NoticeTTL,
	})
	scheduler := attendance.NewScheduler(attendance.SchedulerConfig{
		Machine:       machine,
		Roster:        g,
		Notifier:      g,
		Printer:       printer,
		Format:        durations.Format,
		IdleThreshold: cfg.Attendance.IdleThreshold,
		AckTimeout:    cfg.Attendance.AckTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		config:     cfg,
		db:         database,
		session:    session,
		surface:    g,
		machine:    machine,
		scheduler:  scheduler,
		board:      board,
		printer:    printer,
		durations:  durations,
		ctx:        ctx,
		cancel:     cancel,
		shutdownCh: make(chan struct{}),
	}, nil
}

// track registers a running handler. It returns false once shutdown began.
func (b *Bot) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		return false
	}
	b.wg.Add(1)
	return true
}

func (b *Bot) appID() string {
	if b.config.Discord.ClientID != "" {
		return b.config.Discord.ClientID
	}
	if b.session.State.User != nil {
		return b.session.State.User.ID
	}
	return ""
}

// Helper function to register commands for a guild
func (b *Bot) registerGuildCommands(guildID string) error {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := b.registerGuildCommandsOnce(guildID)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Printf("Attempt %d to register commands failed: %v", i+1, err)
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return fmt.Errorf("failed to register commands after %d attempts: %w", maxRetries, lastErr)
}

func (b *Bot) registerGuildCommandsOnce(guildID string) error {
	serverName := getServerName(b.session, guildID)
	log.Println(formatLogMessage(guildID, "Registering commands", "BOT", serverName))

	// Overwrite replaces every existing guild command in one call
	created, err := b.session.ApplicationCommandBulkOverwrite(b.appID(), guildID, commands)
	if err != nil {
		return fmt.Errorf("error registering commands: %w", err)
	}
	for _, v := range created {
		log.Println(formatLogMessage(guildID, fmt.Sprintf("%s: Registered command", v.Name), "BOT", serverName))
	}
	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.Println("Starting dutybot...")

	// Keep trying to connect until successful
	for {
		log.Println("Testing Discord API connection...")
		_, err := b.session.User("@me")
		if err == nil {
			log.Println("Successfully connected to Discord API")
			break
		}
		log.Printf("Failed to connect to Discord API: %v. Retrying in 5 seconds...", err)
		select {
		case <-ctx.Done():
			return b.Shutdown()
		case <-time.After(5 * time.Second):
		}
	}

	// Handlers go in before Open so READY is not missed
	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(b.handleGuildCreate)
	b.session.AddHandler(b.handleReactionAdd)
	b.session.AddHandler(b.handleMessageCreate)
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type == discordgo.InteractionApplicationCommand {
			b.handleCommand(s, i)
		}
	})

	// Keep trying to open session until successful
	for {
		err := b.session.Open()
		if err == nil {
			log.Printf("Session opened successfully (Session ID: %s)", b.session.State.SessionID)
			break
		}
		log.Printf("Error opening Discord session: %v. Retrying in 5 seconds...", err)
		select {
		case <-ctx.Done():
			return b.Shutdown()
		case <-time.After(5 * time.Second):
		}
	}

	log.Println("Bot is now running. Press CTRL-C to exit.")

	select {
	case <-ctx.Done():
	case <-b.shutdownCh:
	}
	return b.Shutdown()
}

// Shutdown performs a graceful shutdown of the bot. Outstanding reminders
// are abandoned without clocking anybody out.
func (b *Bot) Shutdown() error {
	b.mu.Lock()
	if b.isShutdown {
		b.mu.Unlock()
		return nil
	}
	b.isShutdown = true
	close(b.shutdownCh)
	b.mu.Unlock()

	log.Println("Initiating graceful shutdown...")
	if n := b.surface.challenges.pending(); n > 0 {
		log.Printf("Abandoning %d outstanding reminders", n)
	}
	b.cancel()

	log.Println("Waiting for active handlers to complete...")
	b.wg.Wait()
	b.scheduler.Wait()

	if guildID := b.surface.GuildID(); guildID != "" {
		serverName := getServerName(b.session, guildID)
		log.Println(formatLogMessage(guildID, "Removing commands", "BOT", serverName))

		registered, err := b.session.ApplicationCommands(b.appID(), guildID)
		if err != nil {
			log.Println(formatLogMessage(guildID, fmt.Sprintf("Error getting commands: %v", err), "BOT", serverName))
		}
		for _, cmd := range registered {
			if err := b.session.ApplicationCommandDelete(b.appID(), guildID, cmd.ID); err != nil {
				log.Println(formatLogMessage(guildID, fmt.Sprintf("%s: Failed to remove command (%v)", cmd.Name, err), "BOT", serverName))
			}
		}
	}

	log.Println("Closing Discord session...")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("error closing Discord session: %w", err)
	}

	if b.db != nil {
		log.Println("Closing database connection...")
		b.db.Close()
	}

	log.Println("Shutdown completed successfully")
	return nil
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	if !b.track() {
		return
	}
	defer b.wg.Done()

	log.Printf("Bot is ready! Connected to %d guilds", len(r.Guilds))

	guildID := b.config.Discord.GuildID
	if guildID == "" {
		if len(r.Guilds) == 0 {
			log.Println("Bot is not a member of any guild, waiting for an invite")
			return
		}
		guildID = r.Guilds[0].ID
		if len(r.Guilds) > 1 {
			log.Printf("Bot is in %d guilds, serving %s only; set discord.guild_id to choose", len(r.Guilds), guildID)
		}
	}

	if err := b.surface.bind(guildID); err != nil {
		log.Println(formatLogMessage(guildID, fmt.Sprintf("Error binding guild: %v", err), "BOT", ""))
		return
	}
	log.Println(formatLogMessage(guildID, "Bound guild", "BOT", getServerName(s, guildID)))

	b.readyOnce.Do(func() {
		if err := b.postPrompt(); err != nil {
			log.Println(formatLogMessage(guildID, fmt.Sprintf("Error posting prompt: %v", err), "BOT", ""))
		}
		if err := b.board.Refresh(); err != nil {
			log.Println(formatLogMessage(guildID, fmt.Sprintf("Error refreshing leaderboard: %v", err), "BOT", ""))
		}

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.scheduler.Run(b.ctx, b.config.Attendance.SweepInterval)
		}()
	})
}

func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if !b.track() {
		return
	}
	defer b.wg.Done()

	if g.ID != b.surface.GuildID() {
		log.Println(formatLogMessage(g.ID, "Ignoring guild, bot is bound elsewhere", "BOT", g.Name))
		return
	}

	// Channels may have been created since READY
	if err := b.surface.bind(g.ID); err != nil {
		log.Println(formatLogMessage(g.ID, fmt.Sprintf("Error binding guild: %v", err), "BOT", g.Name))
	}

	if err := b.registerGuildCommands(g.ID); err != nil {
		log.Println(formatLogMessage(g.ID, fmt.Sprintf("Error registering commands: %v", err), "BOT", g.Name))
	} else {
		log.Println(formatLogMessage(g.ID, "Successfully registered all commands", "BOT", g.Name))
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.track() {
		return
	}
	defer b.wg.Done()

	// Add defer to catch panics with stack trace
	defer func() {
		if r := recover(); r != nil {
			username := "unknown"
			if i.Member != nil && i.Member.User != nil {
				username = i.Member.User.Username
			} else if i.User != nil {
				username = i.User.Username
			}

			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			log.Printf("Panic in command handler for user %s in guild %s:\nError: %v\nStack Trace:\n%s",
				username, i.GuildID, r, string(buf[:n]))

			respondWithError(s, i, "An internal error occurred")
		}
	}()

	commandName := i.ApplicationCommandData().Name

	if i.GuildID == "" || i.GuildID != b.surface.GuildID() {
		respondWithError(s, i, fmt.Sprintf("The `/%s` command can only be used in the bot's server", commandName))
		return
	}

	switch commandName {
	case "start":
		b.handleStart(s, i)
	case "leaderboard":
		b.handleLeaderboard(s, i)
	case "status":
		b.handleStatus(s, i)
	case "report":
		b.handleReport(s, i)
	default:
		log.Println(formatLogMessage(i.GuildID, "Unknown command: "+commandName, "", ""))
		respondWithError(s, i, "Unknown command")
	}
}
