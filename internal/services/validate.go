package services

import (
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Value is a cleaned field value. Multi-select values keep their native
// list form until String serializes them.
type Value struct {
	Text     string
	Choices  []string
	Multiple bool
}

// String is the persisted answer body.
func (v Value) String() string {
	if v.Multiple {
		return EncodeChoiceList(v.Choices)
	}
	return v.Text
}

// CleanedEntry is one validated field value.
type CleanedEntry struct {
	Name  string
	Value Value
}

// CleanedData holds validated values in field order.
type CleanedData struct {
	entries []CleanedEntry
	index   map[string]int
}

func NewCleanedData() *CleanedData {
	return &CleanedData{index: map[string]int{}}
}

// Set adds or replaces a value, keeping the first insertion position.
func (c *CleanedData) Set(name string, v Value) {
	if i, ok := c.index[name]; ok {
		c.entries[i].Value = v
		return
	}
	c.index[name] = len(c.entries)
	c.entries = append(c.entries, CleanedEntry{Name: name, Value: v})
}

func (c *CleanedData) Get(name string) (Value, bool) {
	i, ok := c.index[name]
	if !ok {
		return Value{}, false
	}
	return c.entries[i].Value, true
}

func (c *CleanedData) Entries() []CleanedEntry { return c.entries }

func (c *CleanedData) Len() int { return len(c.entries) }

// Values converts the cleaned data back into flat submitted values.
func (c *CleanedData) Values() url.Values {
	out := url.Values{}
	for _, e := range c.entries {
		if e.Value.Multiple {
			out[e.Name] = append([]string(nil), e.Value.Choices...)
			continue
		}
		out.Set(e.Name, e.Value.Text)
	}
	return out
}

// FieldErrors maps field names to a validation message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e[name])
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// Clean validates flat submitted values against the synthesized fields.
// Empty optional fields are left out of the result. Validation failures are
// returned as FieldErrors.
func (f *ResponseForm) Clean(data url.Values) (*CleanedData, error) {
	if f.disabled {
		return nil, NewForbiddenError("answers can no longer be edited")
	}
	cleaned := NewCleanedData()
	errs := FieldErrors{}
	for _, field := range f.fields {
		v, msg := cleanField(field, data[field.Name])
		if msg != "" {
			errs[field.Name] = msg
			continue
		}
		if v != nil {
			cleaned.Set(field.Name, *v)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return cleaned, nil
}

func cleanField(field *Field, raw []string) (*Value, string) {
	allowed := map[string]bool{}
	for _, c := range field.Choices {
		if c.Value != "" {
			allowed[c.Value] = true
		}
	}

	if field.Multiple() {
		selected := make([]string, 0, len(raw))
		for _, s := range raw {
			if s = strings.TrimSpace(s); s != "" {
				selected = append(selected, s)
			}
		}
		if len(selected) == 0 {
			if field.Required {
				return nil, validationMessage(validate.Var(selected, "gt=0"))
			}
			return nil, ""
		}
		for _, s := range selected {
			if !allowed[s] {
				return nil, "select a valid choice: " + s
			}
		}
		return &Value{Choices: selected, Multiple: true}, ""
	}

	text := ""
	if len(raw) > 0 {
		text = strings.TrimSpace(raw[0])
	}
	if text == "" {
		if field.Required {
			return nil, validationMessage(validate.Var(text, "required"))
		}
		return nil, ""
	}

	switch field.Kind {
	case KindInteger:
		if err := validate.Var(text, "numeric"); err != nil {
			return nil, validationMessage(err)
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, "enter a whole number"
		}
		text = strconv.FormatInt(n, 10)
	case KindFloat:
		if err := validate.Var(text, "numeric"); err != nil {
			return nil, validationMessage(err)
		}
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, "enter a number"
		}
		text = strconv.FormatFloat(n, 'f', -1, 64)
	case KindDate:
		if err := validate.Var(text, "datetime=2006-01-02"); err != nil {
			return nil, validationMessage(err)
		}
	case KindChoice:
		if !allowed[text] {
			return nil, "select a valid choice: " + text
		}
	}
	return &Value{Text: text}, ""
}

func validationMessage(err error) string {
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	switch verrs[0].Tag() {
	case "required", "gt":
		return "this field is required"
	case "numeric":
		return "enter a number"
	case "datetime":
		return "enter a valid date (YYYY-MM-DD)"
	}
	return "invalid value"
}
