package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Prompt walks through the editable settings on in/out. An empty answer
// keeps the current value; invalid answers are asked again.
func (c *Config) Prompt(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	askShown := func(label, shown, current string, check func(string) error) (string, error) {
		for {
			fmt.Fprintf(out, "%s [%s]: ", label, shown)
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return "", errors.Wrap(err, "reading input")
				}
				return current, nil
			}

			answer := strings.TrimSpace(scanner.Text())
			if answer == "" {
				return current, nil
			}
			if check != nil {
				if err := check(answer); err != nil {
					fmt.Fprintf(out, "  %v\n", err)
					continue
				}
			}
			return answer, nil
		}
	}
	ask := func(label, current string, check func(string) error) (string, error) {
		return askShown(label, current, current, check)
	}

	isClock := func(s string) error {
		_, err := ParseClock(s)
		return err
	}
	isBool := func(s string) error {
		_, err := strconv.ParseBool(s)
		return err
	}
	isID := func(s string) error {
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			return errors.New("expected a numeric Discord user ID")
		}
		return nil
	}

	var err error
	if c.Token, err = askShown("Discord bot token", mask(c.Token), c.Token, nil); err != nil {
		return err
	}
	if c.Owner, err = ask("Owner user ID", c.Owner, isID); err != nil {
		return err
	}
	if c.BotName, err = ask("Bot name", c.BotName, nil); err != nil {
		return err
	}
	if c.DefaultActivity, err = ask("Default activity", c.DefaultActivity, nil); err != nil {
		return err
	}

	autoReboot, err := ask("Auto reboot (true/false)", strconv.FormatBool(c.AutoReboot), isBool)
	if err != nil {
		return err
	}
	c.AutoReboot, _ = strconv.ParseBool(autoReboot)

	if c.AutoReboot {
		if c.ARTime, err = ask("Auto reboot time (HH:MM:SS)", c.ARTime, isClock); err != nil {
			return err
		}
		if c.ARReminderTime, err = ask("Reminder time (HH:MM:SS)", c.ARReminderTime, isClock); err != nil {
			return err
		}
	}
	return nil
}

// mask hides all but the last four characters of a secret.
func mask(secret string) string {
	if len(secret) <= 4 {
		return secret
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
