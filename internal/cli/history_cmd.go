// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - Stored conversation commands for farmhand.
//
// CLI: ID or 1-based list position accepted wherever a conversation is named
//
// Command: history [list|show|export|delete|clear]

package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jeranaias/farmhand/internal/export"
	"github.com/jeranaias/farmhand/internal/model"
	"github.com/jeranaias/farmhand/internal/storage"
	"github.com/jeranaias/farmhand/internal/util"
)

// HandleHistory runs "history list|show|export|delete|clear".
func HandleHistory(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	path, err := cfg.StoragePath()
	if err != nil {
		return err
	}
	store, err := storage.Open(path)
	if err != nil {
		return &CommandError{Command: "history", Action: "open", Reason: "could not open conversation history", Err: err}
	}
	defer store.Close()

	switch sub := args.Subcommand; sub {
	case "", "list", "ls":
		return historyList(store, args, os.Stdout)
	case "show":
		return historyShow(store, args, os.Stdout)
	case "export":
		return historyExport(store, args, os.Stdout)
	case "delete", "rm":
		return historyDelete(store, args, os.Stdout)
	case "clear":
		if !args.Parser.BoolFlag("force") {
			return &UsageError{Reason: "clear removes every stored conversation", Example: "farmhand history clear --force"}
		}
		if err := store.Clear(); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Println("History cleared.")
		}
		return nil
	default:
		return &UsageError{Reason: fmt.Sprintf("unknown history command %q", sub), Example: "farmhand history list"}
	}
}

func historyList(store *storage.Store, args Args, w io.Writer) error {
	var (
		metas []storage.ConversationMeta
		err   error
	)
	if q := args.Parser.Flag("search"); q != "" {
		metas, err = store.Search(q)
	} else {
		metas, err = store.List()
	}
	if err != nil {
		return err
	}

	if args.JSON {
		items := make([]ConversationSummary, 0, len(metas))
		for i, m := range metas {
			items = append(items, ConversationSummary{
				Index:        i + 1,
				ID:           m.ID,
				Summary:      m.Summary,
				Place:        m.Place,
				MessageCount: m.MessageCount,
				UpdatedAt:    m.UpdatedAt,
			})
		}
		return NewJSONResponse("history list", items).Write(w)
	}

	if len(metas) == 0 {
		fmt.Fprintln(w, "No saved conversations.")
		return nil
	}
	for i, m := range metas {
		place := ""
		if m.Place != "" {
			place = DimStyle.Render(" 📍 " + m.Place)
		}
		fmt.Fprintf(w, "%3d. %s %s%s\n",
			i+1,
			util.PadRight(util.TruncateWidth(m.Summary, 50), 50),
			DimStyle.Render(fmt.Sprintf("%s · %d msgs", formatAge(time.Since(m.UpdatedAt)), m.MessageCount)),
			place,
		)
	}
	return nil
}

func historyShow(store *storage.Store, args Args, w io.Writer) error {
	ref := args.Parser.Positional(1)
	if ref == "" {
		return ErrMissingArgument("conversation ID or number", "farmhand history show 1")
	}
	conv, err := findConversation(store, ref)
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("history show", ConversationData{
			ID:        conv.ID,
			Summary:   conv.Summary,
			Location:  conv.Location,
			CreatedAt: conv.CreatedAt,
			UpdatedAt: conv.UpdatedAt,
			Messages:  conv.Messages,
		}).Write(w)
	}

	fmt.Fprintln(w, TitleStyle.Render(conv.Summary))
	fmt.Fprintln(w, DimStyle.Render(conv.ID+" · "+conv.UpdatedAt.Local().Format("2006-01-02 15:04")))
	if conv.Location != nil {
		fmt.Fprintln(w, DimStyle.Render("📍 "+conv.Location.Label()))
	}
	fmt.Fprintln(w, RenderSeparator(60))
	for _, m := range conv.Messages {
		label := UserStyle.Render(m.Role.DisplayName() + ":")
		if m.Role != model.RoleUser {
			label = AssistantStyle.Render(m.Role.DisplayName() + ":")
		}
		fmt.Fprintln(w, label)
		fmt.Fprintln(w, m.Content)
		fmt.Fprintln(w)
	}
	return nil
}

func historyExport(store *storage.Store, args Args, w io.Writer) error {
	ref := args.Parser.Positional(1)
	if ref == "" {
		return ErrMissingArgument("conversation ID or number", "farmhand history export 1 --format md")
	}
	conv, err := findConversation(store, ref)
	if err != nil {
		return err
	}

	opts := export.DefaultOptions()
	if dir := args.Parser.Flag("out"); dir != "" {
		opts.OutputDir = util.ExpandHome(dir)
	}
	exp, err := export.ForFormat(args.Parser.Flag("format"), opts)
	if err != nil {
		return &UsageError{Reason: err.Error(), Example: "farmhand history export 1 --format json"}
	}
	path, err := export.ExportToFile(conv, exp, opts)
	if err != nil {
		return &CommandError{Command: "history", Action: "export", Reason: "could not write export", Err: err}
	}
	log.Printf("HISTORY_EXPORT | id=%s path=%s", conv.ID, path)

	if args.JSON {
		return NewJSONResponse("history export", map[string]string{"id": conv.ID, "path": path}).Write(w)
	}
	if !args.Quiet {
		fmt.Fprintln(w, SuccessStyle.Render("Exported to "+path))
	}
	return nil
}

func historyDelete(store *storage.Store, args Args, w io.Writer) error {
	ref := args.Parser.Positional(1)
	if ref == "" {
		return ErrMissingArgument("conversation ID or number", "farmhand history delete 1")
	}
	conv, err := findConversation(store, ref)
	if err != nil {
		return err
	}
	if err := store.Delete(conv.ID); err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("history delete", map[string]string{"id": conv.ID}).Write(w)
	}
	if !args.Quiet {
		fmt.Fprintf(w, "Deleted %q\n", conv.Summary)
	}
	return nil
}

// formatAge renders d as a short relative age like "5m ago".
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
