package content

import (
	"fmt"

	"jianghu-lite/jianghu"
)

// Choice is one answer to a questionnaire question.
type Choice struct {
	Value       string        `yaml:"value" json:"value"`
	Label       string        `yaml:"label" json:"label"`
	Description string        `yaml:"description" json:"description"`
	Effects     jianghu.Delta `yaml:"effects" json:"effects"`
}

type Question struct {
	ID      string   `yaml:"id" json:"id"`
	Prompt  string   `yaml:"prompt" json:"prompt"`
	Options []Choice `yaml:"options" json:"options"`
}

// Questionnaire is the ordered background questionnaire.
type Questionnaire []Question

func (q Questionnaire) clone() Questionnaire {
	out := make(Questionnaire, len(q))
	for i, qu := range q {
		opts := make([]Choice, len(qu.Options))
		for j, o := range qu.Options {
			o.Effects = o.Effects.Clone()
			opts[j] = o
		}
		qu.Options = opts
		out[i] = qu
	}
	return out
}

// Choice finds the option with value for questionID.
func (q Questionnaire) Choice(questionID, value string) (Choice, bool) {
	for _, qu := range q {
		if qu.ID != questionID {
			continue
		}
		for _, o := range qu.Options {
			if o.Value == value {
				return o, true
			}
		}
	}
	return Choice{}, false
}

// Validate checks that every question has a known answer.
func (q Questionnaire) Validate(a jianghu.Answers) error {
	for _, qu := range q {
		v := a.ByQuestion(qu.ID)
		if _, ok := q.Choice(qu.ID, v); !ok {
			return fmt.Errorf("question %s answer %q: %w", qu.ID, v, ErrUnknownAnswer)
		}
	}
	return nil
}

// InitialStats folds the answers' effects into the default stats, one rules
// pass per question in questionnaire order. A nil rules engine uses the plain
// clamp.
func (q Questionnaire) InitialStats(a jianghu.Answers, rules *jianghu.RulesEngine) (jianghu.StatVector, error) {
	if err := q.Validate(a); err != nil {
		return jianghu.StatVector{}, err
	}
	stats := jianghu.DefaultStats()
	limits := jianghu.DefaultLimits()
	for _, qu := range q {
		c, _ := q.Choice(qu.ID, a.ByQuestion(qu.ID))
		if rules != nil {
			stats = rules.ApplyChanges(stats, c.Effects)
		} else {
			stats = limits.Apply(stats, c.Effects)
		}
	}
	return stats, nil
}
