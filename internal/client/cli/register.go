package cli

import (
	"context"
	"fmt"

	"flowsync/pkg/api"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}

	password, err := c.io.ReadPassword("Password (min 8 chars): ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	c.io.Println()
	c.io.Println("Registering user...")

	resp, err := c.apiClient.Register(ctx, api.RegisterRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("Registration successful!")
	c.io.Printf("User ID: %s\n", resp.UserID)
	c.io.Println()
	c.io.Println("Run 'flowsync login' to start using the service.")

	return nil
}
