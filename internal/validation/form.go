package validation

import "fmt"

// RuleType identifies one form validation rule.
type RuleType string

const (
	RuleRequired  RuleType = "required"
	RuleEmail     RuleType = "email"
	RulePassword  RuleType = "password"
	RuleUsername  RuleType = "username"
	RuleMinLength RuleType = "minLength"
	RuleMaxLength RuleType = "maxLength"
	RuleMatch     RuleType = "match"
)

// Rule is one descriptor in a field's ordered rule list. Value applies to
// minLength/maxLength, Field to match.
type Rule struct {
	Type  RuleType `json:"type"`
	Value int      `json:"value,omitempty"`
	Field string   `json:"field,omitempty"`
}

// Rules maps a field name to its ordered rule list.
type Rules map[string][]Rule

// FormResult is the outcome of validating a whole form.
type FormResult struct {
	Valid  bool              `json:"isValid"`
	Errors map[string]string `json:"errors"`
}

// Form evaluates each field's rules in order. The first failing rule for a
// field records its message and ends evaluation for that field; fields are
// otherwise independent. Presence checks belong to the required rule, so
// email/password/username rules skip empty values.
func Form(data map[string]string, rules Rules) FormResult {
	errors := make(map[string]string)

	for fieldName, fieldRules := range rules {
		value := data[fieldName]

		for _, rule := range fieldRules {
			result, applied := applyRule(rule, fieldName, value, data)
			if !applied {
				continue
			}
			if !result.Valid {
				errors[fieldName] = result.Message
				break
			}
		}
	}

	return FormResult{Valid: len(errors) == 0, Errors: errors}
}

// applyRule evaluates one rule. The second return value is false when the
// rule does not apply to the value (content rules on empty input).
func applyRule(rule Rule, fieldName, value string, data map[string]string) (Result, bool) {
	switch rule.Type {
	case RuleRequired:
		return Required(value, fieldName), true

	case RuleEmail:
		if value == "" {
			return Result{}, false
		}
		if Email(value) {
			return Result{Valid: true, Message: "Valid email"}, true
		}
		return Result{Valid: false, Message: "Invalid email format"}, true

	case RulePassword:
		if value == "" {
			return Result{}, false
		}
		return Password(value), true

	case RuleUsername:
		if value == "" {
			return Result{}, false
		}
		return Username(value), true

	case RuleMinLength:
		return MinLength(value, rule.Value, fieldName), true

	case RuleMaxLength:
		return MaxLength(value, rule.Value, fieldName), true

	case RuleMatch:
		if value == data[rule.Field] {
			return Result{Valid: true, Message: "Fields match"}, true
		}
		return Result{
			Valid:   false,
			Message: fmt.Sprintf("%s must match %s", fieldName, rule.Field),
		}, true

	default:
		// Unknown rule types never fail a field.
		return Result{Valid: true, Message: "No validation applied"}, true
	}
}
