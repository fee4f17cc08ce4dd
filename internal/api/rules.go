package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"

	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/database"
	"github.com/relayarr/relayarr/internal/routing"
)

// GET /api/v1/rules
func (s *Server) listRules(c echo.Context) error {
	rules, err := s.deps.Store.AllRouterRules(c.Request().Context())
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	if rules == nil {
		rules = []routing.RouterRule{}
	}
	return c.JSON(http.StatusOK, rules)
}

// GET /api/v1/rules/:id
func (s *Server) getRule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	rule, err := s.deps.Store.GetRouterRule(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrRuleNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "rule not found")
		}
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, rule)
}

// POST /api/v1/rules
func (s *Server) createRule(c echo.Context) error {
	var rule routing.RouterRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	id, err := s.deps.Store.CreateRouterRule(c.Request().Context(), rule)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	rule.ID = id
	return c.JSON(http.StatusCreated, rule)
}

// PUT /api/v1/rules/:id
func (s *Server) updateRule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var rule routing.RouterRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rule.ID = id

	if err := s.deps.Store.UpdateRouterRule(c.Request().Context(), rule); err != nil {
		if errors.Is(err, database.ErrRuleNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "rule not found")
		}
		return errJSON(c, http.StatusBadRequest, err)
	}
	return c.JSON(http.StatusOK, rule)
}

// DELETE /api/v1/rules/:id
func (s *Server) deleteRule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.deps.Store.DeleteRouterRule(c.Request().Context(), id); err != nil {
		if errors.Is(err, database.ErrRuleNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "rule not found")
		}
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ruleDoc is the YAML wire shape for rule import/export. Criteria uses
// the same envelope as the JSON API.
type ruleDoc struct {
	Name             string         `yaml:"name"`
	Type             string         `yaml:"type"`
	Criteria         map[string]any `yaml:"criteria"`
	TargetType       string         `yaml:"targetType"`
	TargetInstanceID int64          `yaml:"targetInstanceId"`
	QualityProfile   *string        `yaml:"qualityProfile,omitempty"`
	RootFolder       *string        `yaml:"rootFolder,omitempty"`
	Order            int            `yaml:"order"`
	Enabled          bool           `yaml:"enabled"`
}

type rulesFile struct {
	Rules []ruleDoc `yaml:"rules"`
}

func conditionToMap(cond routing.Condition) (map[string]any, error) {
	raw, err := json.Marshal(cond)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func mapToCondition(m map[string]any) (routing.Condition, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return routing.Condition{}, err
	}
	var cond routing.Condition
	if err := json.Unmarshal(raw, &cond); err != nil {
		return routing.Condition{}, err
	}
	return cond, nil
}

// GET /api/v1/rules/export returns every rule as a YAML document.
func (s *Server) exportRules(c echo.Context) error {
	rules, err := s.deps.Store.AllRouterRules(c.Request().Context())
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}

	file := rulesFile{Rules: make([]ruleDoc, 0, len(rules))}
	for _, rule := range rules {
		criteria, err := conditionToMap(rule.Criteria)
		if err != nil {
			return errJSON(c, http.StatusInternalServerError, err)
		}
		file.Rules = append(file.Rules, ruleDoc{
			Name:             rule.Name,
			Type:             string(rule.Type),
			Criteria:         criteria,
			TargetType:       string(rule.TargetType),
			TargetInstanceID: rule.TargetInstanceID,
			QualityProfile:   rule.QualityProfile,
			RootFolder:       rule.RootFolder,
			Order:            rule.Order,
			Enabled:          rule.Enabled,
		})
	}

	out, err := yaml.Marshal(file)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.Blob(http.StatusOK, "application/x-yaml", out)
}

type importResponse struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors,omitempty"`
}

// POST /api/v1/rules/import creates rules from a YAML document. Rules
// are validated individually; a bad rule is reported and skipped, it
// does not abort the rest of the import.
func (s *Server) importRules(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	var file rulesFile
	if err := yaml.Unmarshal(body, &file); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid YAML: %v", err))
	}
	if len(file.Rules) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no rules in document")
	}

	ctx := c.Request().Context()
	resp := importResponse{}
	for i, doc := range file.Rules {
		criteria, err := mapToCondition(doc.Criteria)
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("rule %d (%s): bad criteria: %v", i, doc.Name, err))
			continue
		}

		rule := routing.RouterRule{
			Name:             doc.Name,
			Type:             routing.RuleType(doc.Type),
			Criteria:         criteria,
			TargetType:       arr.ServiceType(doc.TargetType),
			TargetInstanceID: doc.TargetInstanceID,
			QualityProfile:   doc.QualityProfile,
			RootFolder:       doc.RootFolder,
			Order:            doc.Order,
			Enabled:          doc.Enabled,
		}

		if _, err := s.deps.Store.CreateRouterRule(ctx, rule); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("rule %d (%s): %v", i, doc.Name, err))
			continue
		}
		resp.Imported++
	}

	return c.JSON(http.StatusOK, resp)
}
