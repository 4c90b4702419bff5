// Package bot is the command dispatcher: it registers the slash commands,
// parses their arguments, gates privileged ones behind the role oracle and
// renders engine results as Discord replies. The engine never sees
// Discord types.
package bot

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"stockpit/internal/auth"
	"stockpit/internal/trading"
)

type Bot struct {
	session    *discordgo.Session
	engine     *trading.Engine
	log        *slog.Logger
	guildID    string
	adminRoles []string

	ready     chan struct{}
	readyOnce sync.Once

	mu        sync.RWMutex
	roleNames map[string]map[string]string // guild ID -> role ID -> name
}

func New(token string, engine *trading.Engine, logger *slog.Logger, guildID string, adminRoles []string) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	b := &Bot{
		session:    session,
		engine:     engine,
		log:        logger,
		guildID:    guildID,
		adminRoles: adminRoles,
		ready:      make(chan struct{}),
		roleNames:  make(map[string]map[string]string),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteraction)
	return b, nil
}

// Ready is closed once the gateway session is up. The market simulator
// waits on it before its first tick.
func (b *Bot) Ready() <-chan struct{} {
	return b.ready
}

// Start opens the gateway session and registers the slash commands.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	appID := b.session.State.User.ID
	if _, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, commandDefinitions()); err != nil {
		b.session.Close()
		return fmt.Errorf("register commands: %w", err)
	}
	b.log.Info("bot started", "user", b.session.State.User.Username, "commands", len(commandDefinitions()))
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.readyOnce.Do(func() {
		b.log.Info("gateway ready", "guilds", len(r.Guilds))
		close(b.ready)
	})
}

// actor resolves the invoking member into the capability set the
// permission oracle checks: their role names in the guild.
func (b *Bot) actor(i *discordgo.InteractionCreate) (auth.Actor, error) {
	if i.Member == nil || i.Member.User == nil {
		return auth.Actor{}, fmt.Errorf("command used outside a guild")
	}
	names, err := b.guildRoleNames(i.GuildID)
	if err != nil {
		return auth.Actor{}, err
	}
	actor := auth.Actor{ID: i.Member.User.ID}
	for _, roleID := range i.Member.Roles {
		if name, ok := names[roleID]; ok {
			actor.Roles = append(actor.Roles, name)
		}
	}
	return actor, nil
}

func (b *Bot) guildRoleNames(guildID string) (map[string]string, error) {
	b.mu.RLock()
	names, ok := b.roleNames[guildID]
	b.mu.RUnlock()
	if ok {
		return names, nil
	}

	roles, err := b.session.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch guild roles: %w", err)
	}
	names = make(map[string]string, len(roles))
	for _, r := range roles {
		names[r.ID] = r.Name
	}
	b.mu.Lock()
	b.roleNames[guildID] = names
	b.mu.Unlock()
	return names, nil
}
