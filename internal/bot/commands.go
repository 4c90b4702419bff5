package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"stockpit/internal/auth"
	"stockpit/internal/ledger"
	"stockpit/internal/trading"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	companyOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "company",
		Description: "Company name",
		Required:    true,
	}
	sharesOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "shares",
		Description: "Number of shares",
		Required:    true,
	}
	memberOpt := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "member",
			Description: "Target member",
			Required:    required,
		}
	}
	amountOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionNumber,
		Name:        "amount",
		Description: "Amount of currency",
		Required:    true,
	}
	priceOpt := func(name string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionNumber,
			Name:        name,
			Description: "Price per share",
			Required:    true,
		}
	}

	return []*discordgo.ApplicationCommand{
		{Name: "stocks", Description: "Show all companies and prices"},
		{Name: "balance", Description: "Show your (or another member's) trading balance",
			Options: []*discordgo.ApplicationCommandOption{memberOpt(false)}},
		{Name: "portfolio", Description: "Show stock holdings and net worth",
			Options: []*discordgo.ApplicationCommandOption{memberOpt(false)}},
		{Name: "history", Description: "Show recent price history for a company",
			Options: []*discordgo.ApplicationCommandOption{companyOpt}},
		{Name: "leaderboard", Description: "Rank traders by net worth"},
		{Name: "buy", Description: "Buy shares of a company",
			Options: []*discordgo.ApplicationCommandOption{companyOpt, sharesOpt}},
		{Name: "sell", Description: "Sell shares of a company",
			Options: []*discordgo.ApplicationCommandOption{companyOpt, sharesOpt}},
		{Name: "addstock", Description: "List a fictional company",
			Options: []*discordgo.ApplicationCommandOption{companyOpt, priceOpt("price")}},
		{Name: "removestock", Description: "Delist a company and clear holdings",
			Options: []*discordgo.ApplicationCommandOption{companyOpt}},
		{Name: "setprice", Description: "Manually set a stock price",
			Options: []*discordgo.ApplicationCommandOption{companyOpt, priceOpt("price")}},
		{Name: "fund", Description: "Credit a member's trading balance",
			Options: []*discordgo.ApplicationCommandOption{memberOpt(true), amountOpt}},
		{Name: "defund", Description: "Debit a member's trading balance",
			Options: []*discordgo.ApplicationCommandOption{memberOpt(true), amountOpt}},
	}
}

// adminCommands require membership in one of the configured admin roles.
var adminCommands = map[string]bool{
	"addstock":    true,
	"removestock": true,
	"setprice":    true,
	"fund":        true,
	"defund":      true,
}

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	actor, err := b.actor(i)
	if err != nil {
		b.log.Error("actor resolution failed", "command", data.Name, "err", err)
		b.reply(s, i, "Something went wrong, try again later.", true)
		return
	}
	if adminCommands[data.Name] && !auth.Authorized(actor, b.adminRoles) {
		b.reply(s, i, fmt.Sprintf("You need one of these roles: %s.", strings.Join(b.adminRoles, ", ")), true)
		return
	}

	opts := make(options, len(data.Options))
	for _, o := range data.Options {
		opts[o.Name] = o
	}

	ctx := context.Background()
	switch data.Name {
	case "stocks":
		b.handleStocks(ctx, s, i)
	case "balance":
		b.handleBalance(ctx, s, i, actor, opts)
	case "portfolio":
		b.handlePortfolio(ctx, s, i, actor, opts)
	case "history":
		b.handleHistory(ctx, s, i, opts)
	case "leaderboard":
		b.handleLeaderboard(ctx, s, i)
	case "buy":
		b.handleTrade(ctx, s, i, actor, opts, "buy")
	case "sell":
		b.handleTrade(ctx, s, i, actor, opts, "sell")
	case "addstock":
		b.handleAddStock(ctx, s, i, opts)
	case "removestock":
		b.handleRemoveStock(ctx, s, i, opts)
	case "setprice":
		b.handleSetPrice(ctx, s, i, opts)
	case "fund":
		b.handleFund(ctx, s, i, opts, false)
	case "defund":
		b.handleFund(ctx, s, i, opts, true)
	}
}

func (b *Bot) handleStocks(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	companies, err := b.engine.Companies(ctx)
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	if len(companies) == 0 {
		b.reply(s, i, "No companies listed yet. Admins can use /addstock.", true)
		return
	}
	embed := &discordgo.MessageEmbed{Title: "Fictional Market", Color: 0x5865F2}
	for _, c := range companies {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: c.Name, Value: fmt.Sprintf("%.2f", c.Price), Inline: true,
		})
	}
	b.replyEmbed(s, i, embed)
}

func (b *Bot) handleBalance(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, actor auth.Actor, opts options) {
	target := b.targetUser(s, i, actor, opts)
	balance, err := b.engine.Balance(ctx, target.ID)
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	b.reply(s, i, fmt.Sprintf("%s balance: **%.2f**", target.Mention(), balance), true)
}

func (b *Bot) handlePortfolio(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, actor auth.Actor, opts options) {
	target := b.targetUser(s, i, actor, opts)
	worth, err := b.engine.Worth(ctx, target.ID)
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	if len(worth.Positions) == 0 {
		b.reply(s, i, fmt.Sprintf("%s has no holdings. Balance **%.2f**.", target.Mention(), worth.Balance), true)
		return
	}
	embed := &discordgo.MessageEmbed{Title: "Portfolio — " + target.Username, Color: 0x57F287}
	for _, p := range worth.Positions {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  p.Company,
			Value: fmt.Sprintf("%d @ %.2f = %.2f", p.Shares, p.Price, ledger.Notional(p.Price, p.Shares)),
		})
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Balance", Value: fmt.Sprintf("%.2f", worth.Balance)},
		&discordgo.MessageEmbedField{Name: "Portfolio Value", Value: fmt.Sprintf("%.2f", worth.PortfolioValue)},
		&discordgo.MessageEmbedField{Name: "Net Worth", Value: fmt.Sprintf("%.2f", worth.NetWorth)},
	)
	b.replyEmbed(s, i, embed)
}

func (b *Bot) handleHistory(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	name := opts["company"].StringValue()
	points, err := b.engine.PriceHistory(ctx, name, 12)
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	if len(points) == 0 {
		b.reply(s, i, fmt.Sprintf("No price history for **%s** yet.", name), true)
		return
	}
	var sb strings.Builder
	for _, p := range points {
		fmt.Fprintf(&sb, "%s — %.2f\n", p.At.Format("Jan 2 15:04"), p.Price)
	}
	b.replyEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Price History — " + name,
		Description: sb.String(),
		Color:       0x5865F2,
	})
}

func (b *Bot) handleLeaderboard(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	rows, err := b.engine.Leaderboard(ctx, 10)
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	if len(rows) == 0 {
		b.reply(s, i, "Nobody is trading yet.", true)
		return
	}
	var sb strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&sb, "%d. <@%s> — %.2f\n", r.Rank, r.UserID, r.NetWorth)
	}
	b.replyEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Net Worth Leaderboard",
		Description: sb.String(),
		Color:       0xFEE75C,
	})
}

func (b *Bot) handleTrade(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, actor auth.Actor, opts options, side string) {
	company := opts["company"].StringValue()
	shares := opts["shares"].IntValue()

	var r trading.Receipt
	var err error
	if side == "buy" {
		r, err = b.engine.Buy(ctx, actor.ID, company, shares)
	} else {
		r, err = b.engine.Sell(ctx, actor.ID, company, shares)
	}
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	verb, direction := "Bought", "cost"
	if side == "sell" {
		verb, direction = "Sold", "received"
	}
	b.reply(s, i, fmt.Sprintf("%s **%d** of **%s** at %.2f each (%s %.2f). Balance **%.2f**.",
		verb, r.Shares, r.Company, r.Price, direction, r.Amount, r.Balance), false)
}

func (b *Bot) handleAddStock(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	name := opts["company"].StringValue()
	price := opts["price"].FloatValue()
	if _, err := b.engine.AddCompany(ctx, name, price); err != nil {
		b.replyError(s, i, err)
		return
	}
	b.reply(s, i, fmt.Sprintf("Company **%s** listed at **%.2f**.", name, ledger.ClampPrice(price)), true)
}

func (b *Bot) handleRemoveStock(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	name := opts["company"].StringValue()
	ok, err := b.engine.RemoveCompany(ctx, name)
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	if !ok {
		b.reply(s, i, "Company not found.", true)
		return
	}
	b.reply(s, i, fmt.Sprintf("Company **%s** delisted and holdings cleared.", name), true)
}

func (b *Bot) handleSetPrice(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	name := opts["company"].StringValue()
	price := opts["price"].FloatValue()
	ok, err := b.engine.SetPrice(ctx, name, price)
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	if !ok {
		b.reply(s, i, "Company not found.", true)
		return
	}
	b.reply(s, i, fmt.Sprintf("**%s** price set to **%.2f**.", name, ledger.ClampPrice(price)), true)
}

func (b *Bot) handleFund(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts options, debit bool) {
	target := opts["member"].UserValue(s)
	amount := opts["amount"].FloatValue()

	var balance float64
	var err error
	if debit {
		balance, err = b.engine.Defund(ctx, target.ID, amount)
	} else {
		balance, err = b.engine.Fund(ctx, target.ID, amount)
	}
	if err != nil {
		b.replyError(s, i, err)
		return
	}
	sign := "+"
	if debit {
		sign = "-"
	}
	b.reply(s, i, fmt.Sprintf("Adjusted %s: %s%.2f (balance %.2f)",
		target.Mention(), sign, ledger.Round2(amount), balance), true)
}

// targetUser resolves the optional member argument, defaulting to the
// invoker.
func (b *Bot) targetUser(s *discordgo.Session, i *discordgo.InteractionCreate, actor auth.Actor, opts options) *discordgo.User {
	if o, ok := opts["member"]; ok {
		return o.UserValue(s)
	}
	return i.Member.User
}

func (b *Bot) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.log.Error("interaction respond failed", "err", err)
	}
}

func (b *Bot) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}},
	})
	if err != nil {
		b.log.Error("interaction respond failed", "err", err)
	}
}

// replyError renders a domain error as a user-facing message. Store
// failures are the one class not relayed verbatim; they get logged and a
// generic apology goes out instead.
func (b *Bot) replyError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	var msg string
	switch {
	case errors.Is(err, ledger.ErrDuplicateName):
		msg = "A company with that name already exists."
	case errors.Is(err, ledger.ErrCompanyNotFound):
		msg = "That company does not exist."
	case errors.Is(err, ledger.ErrInsufficientFunds):
		msg = "Not enough funds."
	case errors.Is(err, trading.ErrInsufficientShares):
		msg = "You do not own that many shares."
	case errors.Is(err, trading.ErrInvalidQuantity):
		msg = "Shares must be a positive integer."
	case errors.Is(err, trading.ErrInvalidAmount):
		msg = "Amount must be positive."
	case errors.Is(err, ledger.ErrStore):
		b.log.Error("store failure", "err", err)
		msg = "Something went wrong, try again later."
	default:
		b.log.Error("unexpected command error", "err", err)
		msg = "Something went wrong, try again later."
	}
	b.reply(s, i, msg, true)
}
