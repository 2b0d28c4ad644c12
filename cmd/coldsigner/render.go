package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/signer"
)

const (
	colorRed      = lipgloss.Color("#f38ba8")
	colorYellow   = lipgloss.Color("#f9e2af")
	colorGreen    = lipgloss.Color("#a6e3a1")
	colorTeal     = lipgloss.Color("#94e2d5")
	colorOverlay1 = lipgloss.Color("#7f849c")
)

var (
	colorError   = colorRed
	colorWarning = colorYellow
	colorSuccess = colorGreen
	colorInfo    = colorTeal
	colorMuted   = colorOverlay1
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
)

// renderCards lays out a card set, two spaces per nesting level.
func renderCards(s cards.Set) string {
	var sb strings.Builder
	for _, e := range s.Entries {
		sb.WriteString(strings.Repeat("  ", e.Indent))
		sb.WriteString(cardStyle(e.Card).Render(e.Card.Text()))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func cardStyle(c cards.Card) lipgloss.Style {
	switch c.(type) {
	case cards.Error:
		return errorStyle
	case cards.Warning:
		return warningStyle
	case cards.Author, cards.ID, cards.Verifier:
		return infoStyle
	default:
		return lipgloss.NewStyle()
	}
}

// renderAction prints the cards of an action followed by what the operator
// can do next with it.
func renderAction(a signer.Action) string {
	var sb strings.Builder
	switch a := a.(type) {
	case signer.BulkSign:
		for i, set := range a.Transactions {
			sb.WriteString(infoStyle.Render(fmt.Sprintf("transaction %d", i+1)))
			sb.WriteByte('\n')
			sb.WriteString(renderCards(set))
		}
	default:
		sb.WriteString(renderCards(a.Display()))
	}

	switch a := a.(type) {
	case signer.ReadOnly:
		if a.Err != nil {
			sb.WriteString(errorStyle.Render("rejected"))
		} else {
			sb.WriteString(mutedStyle.Render("nothing to sign"))
		}
	case signer.SignPending:
		sb.WriteString(next("sign", a.Checksum))
	case signer.Stub:
		sb.WriteString(next("commit", a.Checksum))
	case signer.DerivationsPreview:
		sb.WriteString(next("import-derivations", a.Checksum))
	case signer.BulkSign:
		sb.WriteString(next("bulk", a.Checksum))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func next(command string, checksum model.H256) string {
	return successStyle.Render(command) + " " + mutedStyle.Render(checksum.String())
}

func renderEntry(e model.Entry) string {
	var sb strings.Builder
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("#%d %s", e.Order, e.Timestamp.Format("2006-01-02 15:04:05"))))
	sb.WriteByte('\n')
	for _, ev := range e.Events {
		line := "  " + string(ev.Kind)
		if detail := eventDetail(ev); detail != "" {
			line += " " + detail
		}
		sb.WriteString(eventStyle(ev.Kind).Render(line))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func eventDetail(ev model.Event) string {
	switch {
	case ev.Network != nil:
		return fmt.Sprintf("%s (%s)", ev.Network.Name, ev.Network.Encryption)
	case ev.Metadata != nil:
		return fmt.Sprintf("%s%d", ev.Metadata.Name, ev.Metadata.Version)
	case ev.Identity != nil:
		return fmt.Sprintf("%s %q", ev.Identity.SeedName, ev.Identity.Path)
	case ev.Sign != nil && ev.Sign.UserComment != "":
		return fmt.Sprintf("%q", ev.Sign.UserComment)
	default:
		return ev.Message
	}
}

func eventStyle(kind model.EventKind) lipgloss.Style {
	switch kind {
	case model.EventTransactionSignError, model.EventMessageSignError:
		return errorStyle
	case model.EventWarning, model.EventDeviceWiped, model.EventHistoryCleared:
		return warningStyle
	default:
		return lipgloss.NewStyle()
	}
}
