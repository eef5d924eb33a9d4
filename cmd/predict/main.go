// Command predict scores one patient from the command line using the same
// artifacts and pipeline as the form.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"liverrisk/ml"
)

type output struct {
	Label       int     `json:"label"`
	LabelText   string  `json:"label_text"`
	Probability float64 `json:"probability"`
	RiskPercent float64 `json:"risk_percent"`
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	defaults := ml.DefaultFeatureVector()
	flags := []cli.Flag{
		&cli.StringFlag{Name: "artifacts", Value: "artifacts", Usage: "directory holding the model, column list and scaler"},
		&cli.StringFlag{Name: "format", Value: "text", Usage: "output format [text, json]"},
		&cli.IntFlag{Name: "age", Value: defaults.Age, Usage: "Age (1-120)"},
		&cli.StringFlag{Name: "gender", Value: defaults.Gender.String(), Usage: "Male or Female"},
	}
	for _, spec := range ml.FeatureSpecs() {
		if spec.Name == ml.FeatureAge || spec.Name == ml.FeatureGender {
			continue
		}
		flags = append(flags, &cli.FloatFlag{Name: spec.Name, Value: spec.Default, Usage: spec.Name})
	}

	return &cli.Command{
		Name:  "predict",
		Usage: "Predict liver disease risk for one patient (educational use only)",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd, out)
		},
	}
}

func run(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	bundle, err := ml.NewLoader(ml.DefaultArtifactPaths(cmd.String("artifacts"))).Load()
	if err != nil {
		return err
	}
	pipeline, err := ml.NewPipeline(bundle)
	if err != nil {
		return err
	}

	gender, err := ml.ParseGender(cmd.String("gender"))
	if err != nil {
		return err
	}
	record := map[string]float64{
		ml.FeatureAge:    float64(cmd.Int("age")),
		ml.FeatureGender: float64(gender),
	}
	for _, spec := range ml.FeatureSpecs() {
		if spec.Name == ml.FeatureAge || spec.Name == ml.FeatureGender {
			continue
		}
		record[spec.Name] = cmd.Float(spec.Name)
	}

	prediction, err := pipeline.PredictRecord(ctx, record)
	if err != nil {
		return err
	}

	switch cmd.String("format") {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(output{
			Label:       prediction.Label,
			LabelText:   prediction.LabelText(),
			Probability: prediction.Probability,
			RiskPercent: prediction.RiskPercent,
		})
	case "text":
		p := message.NewPrinter(language.English)
		_, err := p.Fprintf(out, "Model prediction: %s\nRisk Score: %.2f%%\n", prediction.LabelText(), prediction.RiskPercent)
		return err
	default:
		return fmt.Errorf("unknown format %q", cmd.String("format"))
	}
}
