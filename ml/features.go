package ml

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	FeatureAge                       = "Age"
	FeatureGender                    = "Gender"
	FeatureTotalBilirubin            = "Total_Bilirubin"
	FeatureDirectBilirubin           = "Direct_Bilirubin"
	FeatureAlkalinePhosphotase       = "Alkaline_Phosphotase"
	FeatureAlamineAminotransferase   = "Alamine_Aminotransferase"
	FeatureAspartateAminotransferase = "Aspartate_Aminotransferase"
	FeatureTotalProtiens             = "Total_Protiens"
	FeatureAlbumin                   = "Albumin"
	FeatureAlbuminGlobulinRatio      = "Albumin_and_Globulin_Ratio"
)

type Gender int

const (
	Female Gender = 0
	Male   Gender = 1
)

func ParseGender(value string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "male":
		return Male, nil
	case "female":
		return Female, nil
	default:
		return Female, fmt.Errorf("%w: Gender must be Male or Female, got %q", ErrOutOfRange, value)
	}
}

func (g Gender) String() string {
	if g == Male {
		return "Male"
	}
	return "Female"
}

// FeatureVector is one patient's measurements. Values are as entered on the
// form; scaling happens later in the pipeline.
type FeatureVector struct {
	Age                       int
	Gender                    Gender
	TotalBilirubin            float64
	DirectBilirubin           float64
	AlkalinePhosphotase       float64
	AlamineAminotransferase   float64
	AspartateAminotransferase float64
	TotalProtiens             float64
	Albumin                   float64
	AlbuminGlobulinRatio      float64
}

// FeatureSpec describes one input field: its name, the range the form
// enforces and how it maps onto FeatureVector.
type FeatureSpec struct {
	Name    string
	Min     float64
	Max     float64
	Step    float64
	Integer bool
	Default float64

	get func(FeatureVector) float64
	set func(*FeatureVector, float64)
}

// Bounded reports whether the field has an upper limit.
func (s FeatureSpec) Bounded() bool {
	return s.Max > 0
}

var featureSpecs = []FeatureSpec{
	{
		Name: FeatureAge, Min: 1, Max: 120, Step: 1, Integer: true, Default: 45,
		get: func(v FeatureVector) float64 { return float64(v.Age) },
		set: func(v *FeatureVector, x float64) { v.Age = int(x) },
	},
	{
		Name: FeatureGender, Min: 0, Max: 1, Step: 1, Integer: true, Default: 1,
		get: func(v FeatureVector) float64 { return float64(v.Gender) },
		set: func(v *FeatureVector, x float64) { v.Gender = Gender(x) },
	},
	{
		Name: FeatureTotalBilirubin, Step: 0.1, Default: 1.0,
		get: func(v FeatureVector) float64 { return v.TotalBilirubin },
		set: func(v *FeatureVector, x float64) { v.TotalBilirubin = x },
	},
	{
		Name: FeatureDirectBilirubin, Step: 0.1, Default: 0.5,
		get: func(v FeatureVector) float64 { return v.DirectBilirubin },
		set: func(v *FeatureVector, x float64) { v.DirectBilirubin = x },
	},
	{
		Name: FeatureAlkalinePhosphotase, Step: 10, Integer: true, Default: 200,
		get: func(v FeatureVector) float64 { return v.AlkalinePhosphotase },
		set: func(v *FeatureVector, x float64) { v.AlkalinePhosphotase = x },
	},
	{
		Name: FeatureAlamineAminotransferase, Step: 1, Integer: true, Default: 30,
		get: func(v FeatureVector) float64 { return v.AlamineAminotransferase },
		set: func(v *FeatureVector, x float64) { v.AlamineAminotransferase = x },
	},
	{
		Name: FeatureAspartateAminotransferase, Step: 1, Integer: true, Default: 35,
		get: func(v FeatureVector) float64 { return v.AspartateAminotransferase },
		set: func(v *FeatureVector, x float64) { v.AspartateAminotransferase = x },
	},
	{
		Name: FeatureTotalProtiens, Step: 0.1, Default: 6.5,
		get: func(v FeatureVector) float64 { return v.TotalProtiens },
		set: func(v *FeatureVector, x float64) { v.TotalProtiens = x },
	},
	{
		Name: FeatureAlbumin, Step: 0.1, Default: 3.5,
		get: func(v FeatureVector) float64 { return v.Albumin },
		set: func(v *FeatureVector, x float64) { v.Albumin = x },
	},
	{
		Name: FeatureAlbuminGlobulinRatio, Step: 0.1, Default: 1.0,
		get: func(v FeatureVector) float64 { return v.AlbuminGlobulinRatio },
		set: func(v *FeatureVector, x float64) { v.AlbuminGlobulinRatio = x },
	},
}

var specIndex = func() map[string]int {
	index := make(map[string]int, len(featureSpecs))
	for i, spec := range featureSpecs {
		index[spec.Name] = i
	}
	return index
}()

func FeatureNames() []string {
	names := make([]string, len(featureSpecs))
	for i, spec := range featureSpecs {
		names[i] = spec.Name
	}
	return names
}

func FeatureSpecs() []FeatureSpec {
	return append([]FeatureSpec(nil), featureSpecs...)
}

func LookupFeature(name string) (FeatureSpec, bool) {
	i, ok := specIndex[name]
	if !ok {
		return FeatureSpec{}, false
	}
	return featureSpecs[i], true
}

func DefaultFeatureVector() FeatureVector {
	var v FeatureVector
	for _, spec := range featureSpecs {
		spec.set(&v, spec.Default)
	}
	return v
}

// Value returns the named field, or false if the name is not a feature.
func (v FeatureVector) Value(name string) (float64, bool) {
	spec, ok := LookupFeature(name)
	if !ok {
		return 0, false
	}
	return spec.get(v), true
}

// Record returns the vector as a name to value mapping.
func (v FeatureVector) Record() map[string]float64 {
	record := make(map[string]float64, len(featureSpecs))
	for _, spec := range featureSpecs {
		record[spec.Name] = spec.get(v)
	}
	return record
}

// Validate applies the ranges of the input form.
func (v FeatureVector) Validate() error {
	for _, spec := range featureSpecs {
		if err := spec.check(spec.get(v)); err != nil {
			return err
		}
	}
	return nil
}

func (s FeatureSpec) check(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrOutOfRange, s.Name)
	}
	if s.Name == FeatureGender && value != float64(Female) && value != float64(Male) {
		return fmt.Errorf("%w: Gender must be 0 (Female) or 1 (Male), got %g", ErrOutOfRange, value)
	}
	if value < s.Min || (s.Bounded() && value > s.Max) {
		return &RangeError{Feature: s.Name, Value: value, Min: s.Min, Max: s.Max}
	}
	if s.Name == FeatureAge && value != math.Trunc(value) {
		return fmt.Errorf("%w: Age must be a whole number, got %g", ErrOutOfRange, value)
	}
	return nil
}

// FromRecord builds a vector from a name to value mapping. The record must
// carry exactly the ten feature names; extras are rejected, not dropped.
func FromRecord(record map[string]float64) (FeatureVector, error) {
	var missing, unexpected []string
	for _, spec := range featureSpecs {
		if _, ok := record[spec.Name]; !ok {
			missing = append(missing, spec.Name)
		}
	}
	for name := range record {
		if _, ok := specIndex[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(unexpected)
		return FeatureVector{}, &SchemaMismatchError{Missing: missing, Unexpected: unexpected}
	}

	var v FeatureVector
	for _, spec := range featureSpecs {
		value := record[spec.Name]
		if err := spec.check(value); err != nil {
			return FeatureVector{}, err
		}
		spec.set(&v, value)
	}
	return v, nil
}
