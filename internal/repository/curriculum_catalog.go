package repository

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/noah-isme/siakad-krs/internal/models"
)

// DefaultProgramKey is used when a program name matches no alias.
const DefaultProgramKey = "default"

type programConfig struct {
	Aliases    []string                                        `mapstructure:"aliases"`
	Versions   []int                                           `mapstructure:"versions"`
	Rules      models.GraduationRules                          `mapstructure:"rules"`
	Catalogues map[string]map[string][]models.CurriculumCourse `mapstructure:"catalogues"`
}

// CurriculumCatalog serves curriculum catalogues, graduation rules and credit ceilings from an academic rules file.
type CurriculumCatalog struct {
	programs     map[string]programConfig
	defaultRules models.GraduationRules
	ceiling      models.CreditCeilingRules
}

// LoadCurriculumCatalog reads the academic rules file at path.
func LoadCurriculumCatalog(path string) (*CurriculumCatalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read academic rules %s: %w", path, err)
	}
	return NewCurriculumCatalog(v)
}

// NewCurriculumCatalog decodes an already loaded viper instance.
func NewCurriculumCatalog(v *viper.Viper) (*CurriculumCatalog, error) {
	programs := map[string]programConfig{}
	if err := v.UnmarshalKey("programs", &programs); err != nil {
		return nil, fmt.Errorf("decode programs: %w", err)
	}
	var rules models.GraduationRules
	if err := v.UnmarshalKey("default_rules", &rules); err != nil {
		return nil, fmt.Errorf("decode default rules: %w", err)
	}
	ceiling := models.DefaultCreditCeilingRules()
	if v.IsSet("credit_ceiling") {
		if err := v.UnmarshalKey("credit_ceiling", &ceiling); err != nil {
			return nil, fmt.Errorf("decode credit ceiling: %w", err)
		}
	}

	normalised := make(map[string]programConfig, len(programs))
	for key, program := range programs {
		sort.Ints(program.Versions)
		normalised[strings.ToLower(key)] = program
	}
	return &CurriculumCatalog{programs: normalised, defaultRules: rules.WithDefaults(), ceiling: ceiling}, nil
}

// Versions returns the configured version years of a program in ascending order.
func (c *CurriculumCatalog) Versions(program string) []int {
	p, ok := c.programs[strings.ToLower(program)]
	if !ok {
		return nil
	}
	out := make([]int, len(p.Versions))
	copy(out, p.Versions)
	return out
}

// Catalogue returns the semester catalogue of a program version.
func (c *CurriculumCatalog) Catalogue(program string, year int) (map[int][]models.CurriculumCourse, bool) {
	p, ok := c.programs[strings.ToLower(program)]
	if !ok {
		return nil, false
	}
	raw, ok := p.Catalogues[strconv.Itoa(year)]
	if !ok {
		return nil, false
	}
	semesters := make(map[int][]models.CurriculumCourse, len(raw))
	for key, courses := range raw {
		n, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		semesters[n] = append([]models.CurriculumCourse(nil), courses...)
	}
	return semesters, true
}

// Rules returns the graduation rules of a program, falling back to the default rules.
func (c *CurriculumCatalog) Rules(program string) models.GraduationRules {
	p, ok := c.programs[strings.ToLower(program)]
	if !ok {
		return c.defaultRules
	}
	rules := p.Rules
	if rules.TotalCredits <= 0 {
		rules.TotalCredits = c.defaultRules.TotalCredits
	}
	if rules.ThesisMinCredits <= 0 {
		rules.ThesisMinCredits = c.defaultRules.ThesisMinCredits
	}
	if rules.InternshipMinCredits <= 0 {
		rules.InternshipMinCredits = c.defaultRules.InternshipMinCredits
	}
	return rules
}

// ProgramKey maps a program display name onto a configured program key by alias substring.
func (c *CurriculumCatalog) ProgramKey(programName string) string {
	name := strings.ToLower(strings.TrimSpace(programName))
	if _, ok := c.programs[name]; ok {
		return name
	}
	keys := make([]string, 0, len(c.programs))
	for key := range c.programs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, alias := range c.programs[key].Aliases {
			if alias != "" && strings.Contains(name, strings.ToLower(alias)) {
				return key
			}
		}
	}
	return DefaultProgramKey
}

// CreditCeiling returns the configured ceiling table.
func (c *CurriculumCatalog) CreditCeiling() models.CreditCeilingRules {
	return c.ceiling
}
