package main

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fixed sentences that do not live in the topic table
const (
	insatPromptAnswer  = "INSAT series satellites are used for meteorological observations. Which specific INSAT satellite would you like to know about?"
	cityForecastAnswer = "MOSDAC provides 3-hourly weather forecasts for cities across India."
	fallbackAnswer     = "I can help you with information about MOSDAC's satellite missions, weather forecasts, and data services. Please ask a specific question about these topics."
	apologyAnswer      = "I apologize, but I encountered an error. Please try asking your question again."
)

// predicate reports whether a lowercased query selects a rule
type predicate func(query string) bool

// ruleSpec is a rule before its answer has been resolved against a topic table.
// Exactly one of topic or literal is set.
type ruleSpec struct {
	name    string
	match   predicate
	topic   *topicRef
	literal string
}

// rule is a resolved (predicate, answer) pair
type rule struct {
	name   string
	match  predicate
	answer string
}

// contains matches when every term is a substring of the query
func contains(terms ...string) predicate {
	return func(query string) bool {
		for _, term := range terms {
			if !strings.Contains(query, term) {
				return false
			}
		}
		return true
	}
}

// containsAny matches when at least one term is a substring of the query
func containsAny(terms ...string) predicate {
	return func(query string) bool {
		for _, term := range terms {
			if strings.Contains(query, term) {
				return true
			}
		}
		return false
	}
}

// both matches when a and b both match
func both(a, b predicate) predicate {
	return func(query string) bool {
		return a(query) && b(query)
	}
}

func ref(category, key string) *topicRef {
	return &topicRef{Category: category, Key: key}
}

// answerRules is the ordered rule list. First match wins, so the order is load
// bearing: "oceansat" must be tested before "ocean", the INSAT-3DR check before
// INSAT-3D, and the city forecast before the general weather answer.
func answerRules() []ruleSpec {
	weatherOrForecast := containsAny("weather", "forecast")

	return []ruleSpec{
		{name: "insat_3dr", match: contains("insat", "3dr"), topic: ref(CategoryMissions, "INSAT-3DR")},
		{name: "insat_3d", match: contains("insat", "3d"), topic: ref(CategoryMissions, "INSAT-3D")},
		{name: "insat", match: contains("insat"), literal: insatPromptAnswer},
		{name: "oceansat", match: contains("oceansat"), topic: ref(CategoryMissions, "OCEANSAT")},
		{name: "kalpana", match: contains("kalpana"), topic: ref(CategoryMissions, "KALPANA-1")},
		{name: "city_forecast", match: both(weatherOrForecast, contains("city")), literal: cityForecastAnswer},
		{name: "weather", match: weatherOrForecast, topic: ref(CategoryServices, "weather")},
		{name: "data_access", match: containsAny("data", "access"), topic: ref(CategoryServices, "data_access")},
		{name: "monsoon", match: contains("monsoon"), topic: ref(CategoryApplications, "monsoon")},
		{name: "cyclone", match: contains("cyclone"), topic: ref(CategoryApplications, "cyclone")},
		{name: "ocean", match: contains("ocean"), topic: ref(CategoryApplications, "ocean")},
	}
}

// Resolver maps a free-text query to exactly one canned answer.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	rules  []rule
	logger *zap.Logger
}

// NewResolver binds the rule list to the answers in table.
// It fails if the table is missing any topic a rule refers to.
func NewResolver(table TopicTable, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	specs := answerRules()
	rules := make([]rule, 0, len(specs))
	for _, spec := range specs {
		answer := spec.literal
		if spec.topic != nil {
			var err error
			answer, err = table.Lookup(*spec.topic)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", spec.name, err)
			}
		}
		rules = append(rules, rule{name: spec.name, match: spec.match, answer: answer})
	}

	return &Resolver{rules: rules, logger: logger}, nil
}

// Resolve returns the answer for query. It never returns an empty string and
// never panics: an unexpected failure becomes the apology sentence.
func (r *Resolver) Resolve(query string) (answer string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Error resolving helpbot answer",
				zap.Any("panic", rec),
				zap.String("query", query))
			answer = apologyAnswer
		}
	}()

	normalized := normalizeQuery(query)

	for _, rl := range r.rules {
		if rl.match(normalized) {
			return rl.answer
		}
	}

	return fallbackAnswer
}

// RuleCount returns the number of ordered rules, excluding the fallback
func (r *Resolver) RuleCount() int {
	return len(r.rules)
}

// normalizeQuery case-folds with full Unicode lowercase mapping.
// Casers are stateful, so one is built per call.
func normalizeQuery(query string) string {
	return cases.Lower(language.Und).String(query)
}
