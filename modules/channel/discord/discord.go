package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/notify"
	"github.com/flemzord/pulse/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Discord{})
}

// ServiceName is the service registry key under which the sink is published.
const ServiceName = "notify.sink"

const verifyTimeout = 10 * time.Second

// Compile-time interface guards.
var (
	_ notify.Sink       = (*Discord)(nil)
	_ core.Configurable = (*Discord)(nil)
	_ core.Provisioner  = (*Discord)(nil)
	_ core.Validator    = (*Discord)(nil)
	_ core.Starter      = (*Discord)(nil)
)

// Discord posts notifications to a single text channel.
type Discord struct {
	config Config
	client *Client
	logger *slog.Logger
	audit  *security.AuditLogger
}

// ModuleInfo implements core.Module.
func (d *Discord) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.discord",
		New: func() core.Module { return &Discord{} },
	}
}

// Configure implements core.Configurable.
func (d *Discord) Configure(node *yaml.Node) error {
	if err := node.Decode(&d.config); err != nil {
		return fmt.Errorf("discord: decode config: %w", err)
	}
	d.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (d *Discord) Provision(ctx *core.AppContext) error {
	d.config.defaults()
	d.logger = ctx.Logger
	d.client = NewClient(d.config.Token, strings.TrimRight(d.config.APIURL, "/"), d.config.Timeout)

	if d.config.Token != "" {
		if creds, ok := core.ServiceAs[*security.CredentialStore](ctx, "security.credentials"); ok {
			creds.Set("discord.token", d.config.Token)
		}
	}
	d.audit, _ = core.ServiceAs[*security.AuditLogger](ctx, "security.audit")

	ctx.RegisterService(ServiceName, d)
	return nil
}

// Validate implements core.Validator.
func (d *Discord) Validate() error {
	return d.config.validate()
}

// Start implements core.Starter. It checks the token once; a failure is
// logged and does not block startup.
func (d *Discord) Start() error {
	if d.config.ChannelID == "" {
		d.logger.Warn("discord: channel_id not set, notifications will be dropped")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	user, err := d.client.CurrentUser(ctx)
	if err != nil {
		d.logger.Warn("discord: token check failed", "error", err)
		return nil
	}
	d.logger.Info("discord bot authenticated", "id", user.ID, "username", user.Username)
	return nil
}

// Notify implements notify.Sink.
func (d *Discord) Notify(ctx context.Context, n notify.Notification) error {
	if d.config.ChannelID == "" {
		d.logger.Debug("discord: no channel configured, dropping notification", "header", n.Header)
		return nil
	}

	msg := notify.Render(n, d.config.InlineThreshold, d.config.MaxMessageLength)

	var err error
	if msg.Attachment != nil {
		_, err = d.client.CreateMessageWithFile(ctx, d.config.ChannelID, msg.Content, msg.Attachment.Name, msg.Attachment.Data)
	} else {
		_, err = d.client.CreateMessage(ctx, d.config.ChannelID, msg.Content)
	}
	if err != nil {
		return fmt.Errorf("discord: send to channel %s: %w", d.config.ChannelID, err)
	}

	meta := map[string]string{"lines": fmt.Sprint(len(n.Lines))}
	if msg.Attachment != nil {
		meta["attachment"] = msg.Attachment.Name
	}
	d.audit.Log(security.AuditEvent{
		Type:     security.EventNotification,
		Detail:   n.Header,
		Metadata: meta,
	})
	return nil
}
