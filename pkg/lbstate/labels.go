package lbstate

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/function61/lovebeat/pkg/lbdomain"
	"gopkg.in/yaml.v3"
)

// routing for many labels at once, usually from a file:
//
//	labels:
//	  all:
//	    alerts:
//	      error: ["mail:ops@example.com"]
type LabelsFile struct {
	Labels map[string]lbdomain.LabelConfig `yaml:"labels"`
}

func (a *App) Labels(ctx context.Context) ([]string, error) {
	return a.Store.Labels(ctx)
}

func (a *App) LabelConfig(ctx context.Context, label string) (*lbdomain.LabelConfig, error) {
	if err := lbdomain.ValidateLabel(label); err != nil {
		return nil, err
	}

	return a.Store.LabelConfig(ctx, label)
}

func (a *App) SetLabelConfig(ctx context.Context, label string, conf lbdomain.LabelConfig) error {
	if err := lbdomain.ValidateLabel(label); err != nil {
		return err
	}

	if err := a.Store.SetLabelConfig(ctx, label, normalizeLabelConfig(conf)); err != nil {
		return fmt.Errorf("SetLabelConfig %s: %w", label, err)
	}

	return nil
}

// ImportLabels replaces the routing of every label named in the file. Labels it doesn't
// mention are left alone. Returns the imported label names.
func (a *App) ImportLabels(ctx context.Context, file io.Reader) ([]string, error) {
	parsed, err := ParseLabelsFile(file)
	if err != nil {
		return nil, err
	}

	imported := []string{}
	for label := range parsed.Labels {
		imported = append(imported, label)
	}
	sort.Strings(imported)

	for _, label := range imported {
		if err := a.SetLabelConfig(ctx, label, parsed.Labels[label]); err != nil {
			return nil, err
		}
	}

	a.logl.Info.Printf("imported routing for %d label(s)", len(imported))

	return imported, nil
}

func ParseLabelsFile(file io.Reader) (*LabelsFile, error) {
	parsed := &LabelsFile{}

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	if err := decoder.Decode(parsed); err != nil {
		if err == io.EOF { // empty file
			return &LabelsFile{Labels: map[string]lbdomain.LabelConfig{}}, nil
		}

		return nil, fmt.Errorf("%w: labels file: %s", lbdomain.ErrValidation, err.Error())
	}

	if parsed.Labels == nil {
		parsed.Labels = map[string]lbdomain.LabelConfig{}
	}

	for label := range parsed.Labels {
		if err := lbdomain.ValidateLabel(label); err != nil {
			return nil, err
		}
	}

	return parsed, nil
}

// never store nulls, agents iterate these
func normalizeLabelConfig(conf lbdomain.LabelConfig) lbdomain.LabelConfig {
	return lbdomain.LabelConfig{
		Alerts: lbdomain.Recipients{
			Warning: union(conf.Alerts.Warning),
			Error:   union(conf.Alerts.Error),
		},
	}
}
