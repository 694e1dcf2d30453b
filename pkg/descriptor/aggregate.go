package descriptor

// RefSpec names a field path on related instances ("orders.total"). A bare
// RefSpec used as a field value declares an Aggregate field with OpRef; most
// callers wrap it in one of the fold constructors below.
type RefSpec struct {
	Path string `json:"path"`
}

// Ref builds a reference to a field path on related instances.
func Ref(path string) RefSpec { return RefSpec{Path: path} }

// AggregateOp is the fold applied over referenced values.
type AggregateOp string

const (
	OpRef   AggregateOp = "ref"
	OpSum   AggregateOp = "sum"
	OpCount AggregateOp = "count"
	OpAvg   AggregateOp = "avg"
	OpMin   AggregateOp = "min"
	OpMax   AggregateOp = "max"
)

// AggregateSpec declares an Aggregate field: a fold over a referenced field
// path on related instances.
type AggregateSpec struct {
	Op  AggregateOp `json:"op"`
	Ref RefSpec     `json:"ref"`
}

// Sum folds referenced numeric values by addition.
func Sum(r RefSpec) *AggregateSpec { return &AggregateSpec{Op: OpSum, Ref: r} }

// Count counts referenced instances.
func Count(r RefSpec) *AggregateSpec { return &AggregateSpec{Op: OpCount, Ref: r} }

// Avg folds referenced numeric values by arithmetic mean.
func Avg(r RefSpec) *AggregateSpec { return &AggregateSpec{Op: OpAvg, Ref: r} }

// Min folds referenced values by minimum.
func Min(r RefSpec) *AggregateSpec { return &AggregateSpec{Op: OpMin, Ref: r} }

// Max folds referenced values by maximum.
func Max(r RefSpec) *AggregateSpec { return &AggregateSpec{Op: OpMax, Ref: r} }
