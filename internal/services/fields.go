package services

import (
	"log/slog"
	"sort"

	"github.com/soaringjerry/surveyform/internal/models"
)

type FieldKind string

const (
	KindLongText       FieldKind = "long-text"
	KindShortText      FieldKind = "short-text"
	KindInteger        FieldKind = "integer"
	KindFloat          FieldKind = "float"
	KindDate           FieldKind = "date"
	KindChoice         FieldKind = "choice"
	KindMultipleChoice FieldKind = "multiple-choice"
)

type Widget string

const (
	WidgetTextarea         Widget = "textarea"
	WidgetTextInput        Widget = "text-input"
	WidgetNumberInput      Widget = "number-input"
	WidgetDateInput        Widget = "date-input"
	WidgetSelect           Widget = "select"
	WidgetImageSelect      Widget = "image-select"
	WidgetRadio            Widget = "radio"
	WidgetCheckboxMultiple Widget = "checkbox-multiple"
)

// fieldSpec is one row of the answer-type dispatch table. An empty widget
// means the kind's default widget is used.
type fieldSpec struct {
	kind        FieldKind
	widget      Widget
	choices     bool
	emptyChoice bool
}

var fieldSpecs = map[models.AnswerType]fieldSpec{
	models.TypeText:           {kind: KindLongText, widget: WidgetTextarea},
	models.TypeShortText:      {kind: KindShortText, widget: WidgetTextInput},
	models.TypeInteger:        {kind: KindInteger},
	models.TypeFloat:          {kind: KindFloat},
	models.TypeDate:           {kind: KindDate},
	models.TypeSelect:         {kind: KindChoice, widget: WidgetSelect, choices: true, emptyChoice: true},
	models.TypeSelectImage:    {kind: KindChoice, widget: WidgetImageSelect, choices: true, emptyChoice: true},
	models.TypeRadio:          {kind: KindChoice, widget: WidgetRadio, choices: true},
	models.TypeSelectMultiple: {kind: KindMultipleChoice, widget: WidgetCheckboxMultiple, choices: true},
}

// unknown answer types degrade to a plain choice field
var fallbackSpec = fieldSpec{kind: KindChoice, choices: true}

var defaultWidgets = map[FieldKind]Widget{
	KindLongText:       WidgetTextarea,
	KindShortText:      WidgetTextInput,
	KindInteger:        WidgetNumberInput,
	KindFloat:          WidgetNumberInput,
	KindDate:           WidgetDateInput,
	KindChoice:         WidgetSelect,
	KindMultipleChoice: WidgetCheckboxMultiple,
}

func specFor(t models.AnswerType) (fieldSpec, bool) {
	spec, ok := fieldSpecs[t]
	if !ok {
		return fallbackSpec, false
	}
	return spec, true
}

// widgetFor returns the explicit widget of an answer type, if any.
func widgetFor(t models.AnswerType) (Widget, bool) {
	spec, ok := fieldSpecs[t]
	if !ok || spec.widget == "" {
		return "", false
	}
	return spec.widget, true
}

// Field is one flat input of the form.
type Field struct {
	Name           string            `json:"name"`
	Label          string            `json:"label"`
	Type           models.AnswerType `json:"type"`
	Kind           FieldKind         `json:"kind"`
	Widget         Widget            `json:"widget"`
	Required       bool              `json:"required"`
	Disabled       bool              `json:"disabled,omitempty"`
	Choices        []Choice          `json:"choices,omitempty"`
	Initial        string            `json:"initial,omitempty"`
	InitialChoices []string          `json:"initial_choices,omitempty"`
	Attrs          map[string]string `json:"attrs"`
	QuestionID     int64             `json:"-"`
	AnswerGroupID  int64             `json:"-"`
}

// Multiple reports whether the field accepts several values.
func (f *Field) Multiple() bool { return f.Kind == KindMultipleChoice }

// initialValue is the pre-filled value of one answer group.
type initialValue struct {
	text    string
	choices []string
}

// synthesizeFields builds one field per answer group, ordered by group id.
func synthesizeFields(q *models.Question, category *models.Category, initial map[int64]initialValue, logger *slog.Logger) []*Field {
	groups := append([]*models.AnswerGroup(nil), q.AnswerGroups...)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })

	categoryName := ""
	if category != nil {
		categoryName = category.Name
	}

	fields := make([]*Field, 0, len(groups))
	for _, ag := range groups {
		spec, known := specFor(ag.Type)
		if !known {
			logger.Warn("unknown answer group type, using choice field", "answer_group_id", ag.ID, "type", ag.Type)
		}
		widget, ok := widgetFor(ag.Type)
		if !ok {
			widget = defaultWidgets[spec.kind]
		}
		f := &Field{
			Name:          FieldName(q.ID, ag.ID),
			Label:         ag.Name,
			Type:          ag.Type,
			Kind:          spec.kind,
			Widget:        widget,
			Required:      q.Required,
			Attrs:         map[string]string{"category": categoryName},
			QuestionID:    q.ID,
			AnswerGroupID: ag.ID,
		}
		if spec.choices {
			choices := ChoicesFor(ag)
			if spec.emptyChoice {
				choices = append([]Choice{{Value: "", Label: EmptyChoiceLabel}}, choices...)
			}
			f.Choices = choices
		}
		if ag.Type == models.TypeDate {
			f.Attrs["class"] = "date"
		}
		if iv, ok := initial[ag.ID]; ok {
			if f.Multiple() {
				f.InitialChoices = iv.choices
			} else {
				f.Initial = iv.text
			}
		}
		fields = append(fields, f)
	}
	return fields
}
