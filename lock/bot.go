// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package lock

import (
	"context"

	"github.com/relabs-tech/sesame/core"
	"github.com/relabs-tech/sesame/product"
)

// Bot is a SESAME bot
type Bot struct {
	*device
}

var _ Device = (*Bot)(nil)

// NewBot returns a new bot. It fetches the mechanical status once to initialize the
// shadow status.
func NewBot(ctx context.Context, b *Builder) (*Bot, error) {
	d, err := newDevice(b, product.KindBot)
	if err != nil {
		return nil, err
	}
	bot := &Bot{device: d}
	if err := d.initialize(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

// Click runs the configured bot action. The shadow status is left alone. An empty
// historyTag records the default tag.
func (b *Bot) Click(ctx context.Context, historyTag string) bool {
	return b.send(ctx, core.CommandClick, historyTag)
}

func (b *Bot) String() string {
	return b.describe(product.KindBot.String())
}
