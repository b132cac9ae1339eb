package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uivar/uivar/internal/metadata"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Start or stop a variant's dev server",
}

var previewStartCmd = &cobra.Command{
	Use:   "start <variant-id>",
	Short: "Start the variant's dev server and keep it in the foreground",
	Long: `Start the variant's dev server on its assigned port.

The server runs in the foreground: uivar waits until it is ready,
prints the preview URL, and keeps supervising until interrupted.
Ctrl-C stops the server gracefully.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreviewStart,
}

var previewStopCmd = &cobra.Command{
	Use:   "stop <variant-id>",
	Short: "Stop the variant's dev server",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreviewStop,
}

func init() {
	previewCmd.AddCommand(previewStartCmd)
	previewCmd.AddCommand(previewStopCmd)
}

func runPreviewStart(cmd *cobra.Command, args []string) error {
	variantID := args[0]
	if !metadata.ValidVariantID(variantID) {
		return fmt.Errorf("invalid variant id %q (expected 3 digits, e.g. 001)", variantID)
	}

	mgr, err := newManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	interrupted := make(chan struct{})
	go func() {
		<-sigCh
		cancel()
		close(interrupted)
	}()

	infoColor.Printf("Starting preview for variant %s...\n", variantID)

	info, err := mgr.StartPreview(ctx, variantID)
	if err != nil {
		return fmt.Errorf("start preview: %w", err)
	}

	successColor.Printf("✓ Preview ready (%s)\n", info.Framework)
	fmt.Printf("  http://127.0.0.1:%d\n", info.Port)
	fmt.Println("Press Ctrl-C to stop.")

	<-interrupted

	fmt.Println()
	infoColor.Println("Stopping preview...")
	if err := mgr.StopPreview(variantID); err != nil {
		return fmt.Errorf("stop preview: %w", err)
	}
	successColor.Println("✓ Preview stopped")
	return nil
}

func runPreviewStop(cmd *cobra.Command, args []string) error {
	variantID := args[0]
	if !metadata.ValidVariantID(variantID) {
		return fmt.Errorf("invalid variant id %q (expected 3 digits, e.g. 001)", variantID)
	}

	mgr, err := newManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := mgr.StopPreview(variantID); err != nil {
		return fmt.Errorf("stop preview: %w", err)
	}

	successColor.Printf("✓ Stopped preview for variant %s\n", variantID)
	return nil
}
