// Package knowledge holds the static knowledge base the chat assistant answers from.
//
// The base is embedded into the binary at build time; changing it requires a
// rebuild and redeploy.
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed knowledge.toml
var embedded string

var (
	errNoFAQs    = errors.New("knowledge base has no FAQ entries")
	errNoContact = errors.New("knowledge base has no contact channel")
)

// FAQ is a single question/answer pair.
type FAQ struct {
	Question string `toml:"question" json:"question"`
	Answer   string `toml:"answer" json:"answer"`
}

// Contact lists the channels out-of-scope questions are redirected to.
type Contact struct {
	Phone string `toml:"phone" json:"phone"`
	Email string `toml:"email" json:"email"`
}

// Base is a versioned, immutable knowledge base.
type Base struct {
	Version     string  `toml:"version" json:"version"`
	Name        string  `toml:"name" json:"name"`
	Description string  `toml:"description" json:"description"`
	Contact     Contact `toml:"contact" json:"contact"`
	FAQs        []FAQ   `toml:"faq" json:"faqs"`

	systemPrompt string
}

// Load parses the embedded knowledge base.
func Load() (*Base, error) {
	return Parse(embedded)
}

// Parse decodes a knowledge base from TOML and compiles its system prompt.
func Parse(doc string) (*Base, error) {
	var b Base
	md, err := toml.Decode(doc, &b)
	if err != nil {
		return nil, fmt.Errorf("decode knowledge base: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode knowledge base: unknown keys %v", undecoded)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	b.systemPrompt = b.compile()
	return &b, nil
}

func (b *Base) validate() error {
	if len(b.FAQs) == 0 {
		return errNoFAQs
	}
	for i, f := range b.FAQs {
		if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
			return fmt.Errorf("knowledge base FAQ %d is incomplete", i+1)
		}
	}
	if b.Contact.Phone == "" && b.Contact.Email == "" {
		return errNoContact
	}
	return nil
}

// SystemPrompt returns the compiled system prompt.
func (b *Base) SystemPrompt() string {
	return b.systemPrompt
}

func (b *Base) compile() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are the friendly assistant for %s. %s\n\n", b.Name, b.Description)

	sb.WriteString("Answer using only the knowledge below.\n\nKNOWLEDGE BASE:\n")
	for _, f := range b.FAQs {
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n\n", f.Question, f.Answer)
	}

	sb.WriteString("CONTACT:\n")
	if b.Contact.Phone != "" {
		fmt.Fprintf(&sb, "Phone: %s\n", b.Contact.Phone)
	}
	if b.Contact.Email != "" {
		fmt.Fprintf(&sb, "Email: %s\n", b.Contact.Email)
	}

	sb.WriteString("\nRULES:\n")
	sb.WriteString("- Be concise and keep a warm, encouraging tone.\n")
	sb.WriteString("- Reply in at most 2-3 sentences.\n")
	fmt.Fprintf(&sb, "- If a question is not covered above, say so politely and ask the user to reach the %s team at %s.\n",
		b.Name, b.contactLine())

	return sb.String()
}

func (b *Base) contactLine() string {
	switch {
	case b.Contact.Phone != "" && b.Contact.Email != "":
		return b.Contact.Phone + " or " + b.Contact.Email
	case b.Contact.Phone != "":
		return b.Contact.Phone
	default:
		return b.Contact.Email
	}
}

// BuildPrompt assembles the full prompt for a single user message.
func BuildPrompt(systemPrompt, message string) string {
	return systemPrompt + "\n\nUser: " + message + "\n\nAssistant:"
}
