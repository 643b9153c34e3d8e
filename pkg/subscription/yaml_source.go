package subscription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type yamlSource struct {
	path string
}

// NewYAMLSource returns a PlansSource reading the catalog from a YAML file.
// The file holds a list of plans; durations use Go syntax ("720h"), blank
// or omitted periods get the usual defaults during catalog normalization.
//
//	- codename: pro
//	  name: Pro
//	  charge_amount: {amount: 1999, currency: USD}
//	  charge_period: 720h
//	  enabled: true
//	  quotas:
//	    - resource: api_calls
//	      limit: 1000
func NewYAMLSource(path string) PlansSource {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(ctx context.Context) (map[string]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	var plans []Plan
	if err := yaml.Unmarshal(raw, &plans); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	out := make(map[string]Plan, len(plans))
	for _, plan := range plans {
		if _, dup := out[plan.Codename]; dup {
			return nil, errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("duplicate plan codename %q in %s", plan.Codename, s.path))
		}
		out[plan.Codename] = plan
	}
	return out, nil
}

// yaml.v3 cannot decode "720h" into time.Duration, so plans and quotas
// unmarshal through shadow structs with string periods.

type planYAML struct {
	Codename             string  `yaml:"codename"`
	Name                 string  `yaml:"name"`
	ChargeAmount         Money   `yaml:"charge_amount"`
	ChargePeriod         string  `yaml:"charge_period"`
	SubscriptionDuration string  `yaml:"subscription_duration"`
	Enabled              bool    `yaml:"enabled"`
	Quotas               []Quota `yaml:"quotas"`
}

func (p *Plan) UnmarshalYAML(node *yaml.Node) error {
	var raw planYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}

	chargePeriod, err := parseDuration(raw.ChargePeriod)
	if err != nil {
		return fmt.Errorf("plan %s: invalid charge_period: %w", raw.Codename, err)
	}
	duration, err := parseDuration(raw.SubscriptionDuration)
	if err != nil {
		return fmt.Errorf("plan %s: invalid subscription_duration: %w", raw.Codename, err)
	}

	*p = Plan{
		Codename:             raw.Codename,
		Name:                 raw.Name,
		ChargeAmount:         raw.ChargeAmount,
		ChargePeriod:         chargePeriod,
		SubscriptionDuration: duration,
		Enabled:              raw.Enabled,
		Quotas:               raw.Quotas,
	}
	return nil
}

type quotaYAML struct {
	Resource       Resource `yaml:"resource"`
	Limit          int64    `yaml:"limit"`
	RechargePeriod string   `yaml:"recharge_period"`
	BurnsIn        string   `yaml:"burns_in"`
}

func (q *Quota) UnmarshalYAML(node *yaml.Node) error {
	var raw quotaYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}

	recharge, err := parseDuration(raw.RechargePeriod)
	if err != nil {
		return fmt.Errorf("quota %s: invalid recharge_period: %w", raw.Resource, err)
	}
	burnsIn, err := parseDuration(raw.BurnsIn)
	if err != nil {
		return fmt.Errorf("quota %s: invalid burns_in: %w", raw.Resource, err)
	}

	*q = Quota{
		Resource:       raw.Resource,
		Limit:          raw.Limit,
		RechargePeriod: recharge,
		BurnsIn:        burnsIn,
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
