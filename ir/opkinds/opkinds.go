// Package opkinds defines OpKind and lists the instruction kinds of the IR.
package opkinds

// OpKind is an enum of the instruction kinds the IR supports. The set is
// closed: verification and textual rendering switch exhaustively over it.
type OpKind int

const (
	Invalid OpKind = iota
	Copy
	Convolution
	Pool
	FullyConnected
	Relu
	Sigmoid
	Tanh
	SoftMax
	Regression
	Reshape
	Transpose
	Concat
	BatchNormalization
	Arithmetic

	// Last should always be kept the last, it is used as a counter/marker.
	Last
)

// kindNames are the lower-case names used in textual dumps.
var kindNames = [...]string{
	Invalid:            "invalid",
	Copy:               "copy",
	Convolution:        "convolution",
	Pool:               "pool",
	FullyConnected:     "fullyconnected",
	Relu:               "relu",
	Sigmoid:            "sigmoid",
	Tanh:               "tanh",
	SoftMax:            "softmax",
	Regression:         "regression",
	Reshape:            "reshape",
	Transpose:          "transpose",
	Concat:             "concat",
	BatchNormalization: "batchnormalization",
	Arithmetic:         "arithmetic",
	Last:               "last",
}

// String implements fmt.Stringer, returning the dump name of the kind.
func (k OpKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// IsValid reports whether k names an actual instruction kind.
func (k OpKind) IsValid() bool {
	return k > Invalid && k < Last
}
