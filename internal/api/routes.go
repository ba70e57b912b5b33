package api

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/soaringjerry/surveyform/internal/services"
)

// Named route patterns, in chi syntax.
const (
	RouteSurveyDetail = "survey-detail"
	RouteSurveyList   = "survey-list"

	patternSurveyList   = "/api/surveys"
	patternSurveyDetail = "/api/surveys/{id}"
	patternSurveyStep   = "/api/surveys/{id}/steps/{step}/{seed}"
)

// Routes reverses named routes into paths.
type Routes struct {
	patterns map[string]string
}

func NewRoutes() *Routes {
	return &Routes{patterns: map[string]string{
		RouteSurveyList:          patternSurveyList,
		RouteSurveyDetail:        patternSurveyDetail,
		services.RouteSurveyStep: patternSurveyStep,
	}}
}

func (r *Routes) Pattern(name string) string { return r.patterns[name] }

// Reverse substitutes every {param} of the named pattern. Missing and unused
// parameters are errors.
func (r *Routes) Reverse(name string, params map[string]string) (string, error) {
	pattern, ok := r.patterns[name]
	if !ok {
		return "", fmt.Errorf("unknown route %q", name)
	}
	used := 0
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		key := seg[1 : len(seg)-1]
		v, ok := params[key]
		if !ok || v == "" {
			return "", fmt.Errorf("route %q: missing parameter %q", name, key)
		}
		segments[i] = url.PathEscape(v)
		used++
	}
	if used != len(params) {
		return "", fmt.Errorf("route %q: unexpected parameters", name)
	}
	return strings.Join(segments, "/"), nil
}

var _ services.URLBuilder = (*Routes)(nil)
