// Command tvault is a small interactive demo around the vault library: it
// creates or opens a container file, walks through a scripted seed of
// folders and files the first time, and then drops into a short command
// loop for browsing the tree and checking the audit chain.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/tvault/tvault/internal/opslog"
	"github.com/tvault/tvault/internal/vault"
)

const minPasswordLength = 12

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 2)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	fmt.Println(bannerStyle.Render("tvault\nencrypted personal vault"))

	path := "demo.tvault"
	if len(args) > 0 {
		path = args[0]
	}

	logger := opslog.New(opslog.DefaultConfig())

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return firstRun(path, logger)
	}

	return normalRun(path, logger)
}

func firstRun(path string, logger *slog.Logger) error {
	fmt.Println("\nNo vault found at", path, "- let's create one.")

	password, err := promptPassword("Master password (min 12 chars): ")
	if err != nil {
		return err
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	var panicPassword *string
	fmt.Print("Set a duress password too? [y/N]: ")
	if readLine() == "y" {
		p, err := promptPassword("Duress password: ")
		if err != nil {
			return err
		}
		panicPassword = &p
	}

	v, err := vault.Create(path, password, panicPassword, logger)
	if err != nil {
		return fmt.Errorf("failed to create vault: %w", err)
	}
	defer v.Close()

	fmt.Println(okStyle.Render("✓ vault created"))

	if err := seedDemoContent(v); err != nil {
		return fmt.Errorf("failed to seed demo content: %w", err)
	}
	fmt.Println(okStyle.Render("✓ demo content added"))

	return commandLoop(v)
}

// seedDemoContent lays down the same Personal/Work/Secrets shape the
// reference vault ships with, so a freshly created container has
// something to browse immediately.
func seedDemoContent(v *vault.Vault) error {
	for _, folder := range []string{"Personal", "Work", "Secrets"} {
		if _, err := v.CreateFolder(folder, ""); err != nil {
			return err
		}
	}

	seed := []struct {
		parent, name, content string
	}{
		{"", "Welcome.txt", "Welcome to your vault.\n"},
		{"Work", "TODO.txt", "- finish the quarterly report\n- renew the domain\n"},
		{"Secrets", "passwords.txt", "bank: correct-horse-battery-staple\n"},
	}
	for _, s := range seed {
		if _, err := v.AddFile(s.name, []byte(s.content), s.parent); err != nil {
			return err
		}
	}
	return nil
}

func normalRun(path string, logger *slog.Logger) error {
	password, err := promptPassword("Master password: ")
	if err != nil {
		return err
	}

	v, err := vault.Open(path, password, logger)
	if err != nil {
		return fmt.Errorf("failed to unlock vault: %w", err)
	}
	defer v.Close()

	fmt.Println(okStyle.Render("✓ vault unlocked"))

	return commandLoop(v)
}

// commandLoop is a minimal REPL over the vault facade: list, cat, and
// verify are enough to demonstrate the tree and the audit chain without
// building a full shell.
func commandLoop(v *vault.Vault) error {
	fmt.Println(`
commands: ls [path]   list a folder
          cat <path>   print a file's content
          verify       check the audit chain
          quit`)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("\ntvault> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return nil
		case "ls":
			path := ""
			if len(fields) > 1 {
				path = fields[1]
			}
			children, err := v.ListChildren(path)
			if err != nil {
				fmt.Println(warnStyle.Render(err.Error()))
				continue
			}
			for _, c := range children {
				kind := "file"
				if c.IsFolder {
					kind = "folder"
				}
				fmt.Printf("  %-6s %s\n", kind, c.Name)
			}
		case "cat":
			if len(fields) < 2 {
				fmt.Println(warnStyle.Render("usage: cat <path>"))
				continue
			}
			node, err := v.Resolve(fields[1])
			if err != nil {
				fmt.Println(warnStyle.Render(err.Error()))
				continue
			}
			if node.IsFolder {
				fmt.Println(warnStyle.Render("cat: is a folder"))
				continue
			}
			fmt.Println(string(node.Content))
		case "verify":
			if v.VerifyAudit() {
				fmt.Println(okStyle.Render("✓ audit chain intact"))
			} else {
				fmt.Println(warnStyle.Render("✗ audit chain verification failed"))
			}
		default:
			fmt.Println(warnStyle.Render("unknown command: " + fields[0]))
		}
	}
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return string(password), nil
}

func readLine() string {
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.ToLower(strings.TrimSpace(line))
}
