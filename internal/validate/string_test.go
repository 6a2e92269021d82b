package validate

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints StringConstraints
		wantErr     error
		wantOutput  string
	}{
		{
			name:  "valid string within length constraints",
			input: "Hello World",
			constraints: StringConstraints{
				MinLength: 5,
				MaxLength: 20,
				TrimSpace: true,
			},
			wantErr:    nil,
			wantOutput: "Hello World",
		},
		{
			name:  "string too short",
			input: "Hi",
			constraints: StringConstraints{
				MinLength: 5,
				MaxLength: 20,
			},
			wantErr: ErrStringTooShort,
		},
		{
			name:  "string too long",
			input: strings.Repeat("a", 101),
			constraints: StringConstraints{
				MinLength: 1,
				MaxLength: 100,
			},
			wantErr: ErrStringTooLong,
		},
		{
			name:  "empty string not allowed",
			input: "",
			constraints: StringConstraints{
				AllowEmpty: false,
			},
			wantErr: ErrEmpty,
		},
		{
			name:  "empty string allowed",
			input: "",
			constraints: StringConstraints{
				AllowEmpty: true,
			},
			wantErr:    nil,
			wantOutput: "",
		},
		{
			name:  "whitespace trimmed",
			input: "  Hello  ",
			constraints: StringConstraints{
				TrimSpace: true,
			},
			wantErr:    nil,
			wantOutput: "Hello",
		},
		{
			name:  "SQL keyword detected",
			input: "Hello SELECT World",
			constraints: StringConstraints{
				CheckSQLKeywords: true,
			},
			wantErr: ErrSQLKeyword,
		},
		{
			name:  "SQL keyword in lowercase",
			input: "select * from users",
			constraints: StringConstraints{
				CheckSQLKeywords: true,
			},
			wantErr: ErrSQLKeyword,
		},
		{
			name:  "no SQL keyword",
			input: "This is a normal sentence",
			constraints: StringConstraints{
				CheckSQLKeywords: true,
			},
			wantErr:    nil,
			wantOutput: "This is a normal sentence",
		},
		{
			name:  "disallowed word detected",
			input: "Hello spam world",
			constraints: StringConstraints{
				DisallowedWords: []string{"spam", "scam"},
			},
			wantErr: errors.New("disallowed word"),
		},
		{
			name:  "pattern validation success",
			input: "valid-name_123",
			constraints: StringConstraints{
				AllowedPattern: mustCompile(`^[a-zA-Z0-9_\-]+$`),
			},
			wantErr:    nil,
			wantOutput: "valid-name_123",
		},
		{
			name:  "pattern validation failure",
			input: "invalid name!",
			constraints: StringConstraints{
				AllowedPattern: mustCompile(`^[a-zA-Z0-9_\-]+$`),
			},
			wantErr: ErrInvalidCharacters,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if err == nil {
					t.Errorf("String() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if !errors.Is(err, tt.wantErr) && !strings.Contains(err.Error(), "disallowed word") {
					t.Errorf("String() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("String() unexpected error = %v", err)
				return
			}
			if got != tt.wantOutput {
				t.Errorf("String() = %q, want %q", got, tt.wantOutput)
			}
		})
	}
}

func TestSanitizeHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text unchanged",
			input: "Hello World",
			want:  "Hello World",
		},
		{
			name:  "script tag escaped",
			input: "<script>alert('xss')</script>",
			want:  "&lt;script&gt;alert(&#39;xss&#39;)&lt;/script&gt;",
		},
		{
			name:  "HTML entities escaped",
			input: `<div onclick="evil()">Click me</div>`,
			want:  "&lt;div onclick=&#34;evil()&#34;&gt;Click me&lt;/div&gt;",
		},
		{
			name:  "ampersand escaped",
			input: "Tom & Jerry",
			want:  "Tom &amp; Jerry",
		},
		{
			name:  "quotes escaped",
			input: `He said "hello"`,
			want:  "He said &#34;hello&#34;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeHTML(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeHTML() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuestTitle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid quest title",
			input:   "Find the Mural on 5th Street",
			wantErr: false,
		},
		{
			name:    "quest title at max length",
			input:   strings.Repeat("a", 200),
			wantErr: false,
		},
		{
			name:    "quest title too long",
			input:   strings.Repeat("a", 201),
			wantErr: true,
		},
		{
			name:    "empty quest title",
			input:   "",
			wantErr: true,
		},
		{
			name:    "title containing SQL words is allowed",
			input:   "Where the Murals Meet",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QuestTitle(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("QuestTitle() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got == "" {
				t.Errorf("QuestTitle() returned empty string for valid input")
			}
		})
	}
}

func TestCaption(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid caption",
			input:   "Made it to the fountain at sunset!",
			wantErr: false,
		},
		{
			name:    "empty caption allowed",
			input:   "",
			wantErr: false,
		},
		{
			name:    "caption at max length",
			input:   strings.Repeat("a", 2000),
			wantErr: false,
		},
		{
			name:    "caption too long",
			input:   strings.Repeat("a", 2001),
			wantErr: true,
		},
		{
			name:    "caption with HTML",
			input:   "Check out <b>this</b> view!",
			wantErr: false, // Should not error, but HTML will be escaped
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Caption(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Caption() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			// Verify HTML is escaped
			if !tt.wantErr && strings.Contains(tt.input, "<") && !strings.Contains(got, "&lt;") {
				t.Errorf("Caption() did not escape HTML: got %q", got)
			}
		})
	}
}

func TestJustification(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid justification",
			input:   "Photo verified manually against venue webcam footage.",
			wantErr: false,
		},
		{
			name:    "empty justification rejected",
			input:   "",
			wantErr: true,
		},
		{
			name:    "justification too long",
			input:   strings.Repeat("a", 2001),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Justification(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Justification() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestQuestTitleAllowsSQLWords verifies that quest titles skip SQL keyword
// checking entirely, so common English words never reject a legitimate title.
func TestQuestTitleAllowsSQLWords(t *testing.T) {
	titles := []string{
		"Drop By the Old Clock Tower",
		"The Executive Plaza Challenge",
		"From the Rooftop Garden",
		"Join the Night Market Crawl",
		"Select Street Art of the East Side",
	}

	for _, title := range titles {
		t.Run(title, func(t *testing.T) {
			if _, err := QuestTitle(title); err != nil {
				t.Errorf("QuestTitle(%q) unexpected error: %v", title, err)
			}
		})
	}
}

// TestSQLKeywordDetectionWithConstraints tests the SQL keyword detection directly
// with the CheckSQLKeywords constraint enabled, demonstrating the word boundary logic.
func TestSQLKeywordDetectionWithConstraints(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		// Should NOT trigger (legitimate names with SQL keywords as substrings)
		{
			name:    "Executive contains EXEC",
			input:   "The Executive",
			wantErr: false,
		},
		
		// Should trigger (actual SQL keywords as standalone words)
		{
			name:    "standalone SELECT",
			input:   "SELECT something",
			wantErr: true,
		},
		{
			name:    "standalone DELETE",
			input:   "DELETE this",
			wantErr: true,
		},
		{
			name:    "standalone DROP",
			input:   "DROP it",
			wantErr: true,
		},
		{
			name:    "SQL comment pattern",
			input:   "test -- comment",
			wantErr: true,
		},
		{
			name:    "stored procedure prefix",
			input:   "xp_cmdshell test",
			wantErr: true,
		},
	}

	constraints := StringConstraints{
		MinLength:        1,
		MaxLength:        100,
		CheckSQLKeywords: true,
		TrimSpace:        true,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := String(tt.input, constraints)
			hasErr := err != nil
			if hasErr != tt.wantErr {
				t.Errorf("String(%q) with SQL keyword check error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

// Helper function for tests
func mustCompile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}
