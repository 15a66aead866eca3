// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package core

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrNotSupported is returned when a device is asked for a capability its collaborators
// cannot provide, for example subscribing without a push channel.
var ErrNotSupported = errors.New("not supported")

// Command is an actuation command understood by the cloud, one of Lock, Unlock, Toggle, Click
type Command int

// all supported commands
const (
	CommandLock   Command = 82
	CommandUnlock Command = 83
	CommandToggle Command = 88
	CommandClick  Command = 89
)

var commandNames = map[Command]string{
	CommandLock:   "lock",
	CommandUnlock: "unlock",
	CommandToggle: "toggle",
	CommandClick:  "click",
}

// Valid returns true if c is one of the known commands
func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand returns the command for its name
func ParseCommand(name string) (Command, error) {
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%s is not valid Command", name)
}

// UnmarshalJSON is a custom JSON unmarshaller. It accepts the numeric wire value as well
// as the command name.
func (c *Command) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Command(n)
		if !c.Valid() {
			return fmt.Errorf("%d is not valid Command", n)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	cmd, err := ParseCommand(s)
	if err != nil {
		return err
	}
	*c = cmd
	return nil
}
