// Command soulengine is the Soul Engine daemon's operator CLI: start,
// stop, status, and the SOUL_SECRET_KEY-driven env encryption helpers.
// It generalizes the teacher's flag-parsed single-mode main into a
// cobra-based multi-subcommand surface, since this daemon has distinct
// operator verbs instead of one "start chatting" entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hbcaspa/soulengine/internal/config"
	"github.com/hbcaspa/soulengine/internal/engine"
	"github.com/hbcaspa/soulengine/internal/secret"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "soulengine",
		Short:         "Soul Engine: an affective personal-agent daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newStartCmd(), newStopCmd(), newStatusCmd(),
		newEncryptEnvCmd(), newDecryptEnvCmd(), newRotateKeyCmd())
	return root
}

func pidFile(root string) string { return filepath.Join(root, ".soul-engine.pid") }

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "start the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			e, err := engine.New(cfg)
			if err != nil {
				return err
			}

			if err := os.WriteFile(pidFile(cfg.SoulRoot), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not write pid file: %v\n", err)
			}
			defer os.Remove(pidFile(cfg.SoulRoot))

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Printf("soulengine starting, soul root %s\n", cfg.SoulRoot)
			return e.Run(ctx)
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "signal a running daemon to shut down cleanly",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(pidFile(cfg.SoulRoot))
			if err != nil {
				return fmt.Errorf("no running daemon found at %s: %w", cfg.SoulRoot, err)
			}
			pid, err := strconv.Atoi(string(data))
			if err != nil {
				return fmt.Errorf("corrupt pid file: %w", err)
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return err
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal pid %d: %w", pid, err)
			}
			fmt.Printf("sent SIGTERM to pid %d\n", pid)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print a one-shot status banner for the soul root",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e, err := engine.New(cfg)
			if err != nil {
				return err
			}
			defer e.Shutdown()

			st := e.Status()
			fmt.Printf("mood:          %s (valence %.2f, energy %.2f)\n", st.Mood.Mood.Label, st.Mood.Mood.Valence, st.Mood.Mood.Energy)
			fmt.Printf("dominant axis: %s\n", st.Mood.Dominant)
			fmt.Printf("consolidator:  dirty=%d mechanical_only=%v consecutive_failures=%d\n",
				len(st.Consolidator.DirtyBlocks), st.Consolidator.MechanicalOnly, st.Consolidator.ConsecutiveFailures)
			fmt.Printf("impulse:       engagement=%.2f consecutive_ignored=%d\n", st.Impulse.Engagement, st.Impulse.ConsecutiveIgnored)
			fmt.Printf("tokens today:  in=%d out=%d calls=%d\n", st.TokensToday, st.OutputToday, st.CallsToday)
			fmt.Printf("bus events:    %d\n", st.BusEventCount)
			return nil
		},
	}
}

func newEncryptEnvCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "encrypt-env",
		Short: "encrypt a .env file under SOUL_SECRET_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secret.DeriveKey(os.Getenv("SOUL_SECRET_KEY"))
			if err != nil {
				return err
			}
			outPath, err := secret.EncryptFile(path, key)
			if err != nil {
				return err
			}
			fmt.Printf("encrypted %s -> %s\n", path, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", ".env", "path to the plaintext env file")
	return cmd
}

func newDecryptEnvCmd() *cobra.Command {
	var path, out string
	cmd := &cobra.Command{
		Use:   "decrypt-env",
		Short: "decrypt an encrypted env file under SOUL_SECRET_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secret.DeriveKey(os.Getenv("SOUL_SECRET_KEY"))
			if err != nil {
				return err
			}
			if out == "" {
				out = trimEncSuffix(path)
			}
			if err := secret.DecryptFile(path, out, key); err != nil {
				return err
			}
			fmt.Printf("decrypted %s -> %s\n", path, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", ".env.enc", "path to the encrypted env file")
	cmd.Flags().StringVar(&out, "out", "", "output path (default: strip .enc suffix)")
	return cmd
}

func newRotateKeyCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "re-encrypt an env file under a new SOUL_SECRET_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			oldKey, err := secret.DeriveKey(os.Getenv("SOUL_SECRET_KEY_OLD"))
			if err != nil {
				return fmt.Errorf("SOUL_SECRET_KEY_OLD: %w", err)
			}
			newKey, err := secret.DeriveKey(os.Getenv("SOUL_SECRET_KEY"))
			if err != nil {
				return fmt.Errorf("SOUL_SECRET_KEY: %w", err)
			}
			if err := secret.RotateKey(path, oldKey, newKey); err != nil {
				return err
			}
			fmt.Printf("rotated key for %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", ".env.enc", "path to the encrypted env file")
	return cmd
}

func trimEncSuffix(path string) string {
	const suffix = ".enc"
	if len(path) > len(suffix) && path[len(path)-len(suffix):] == suffix {
		return path[:len(path)-len(suffix)]
	}
	return path + ".dec"
}
