package schema

// FeatureRow is the parquet layout of one assembled feature. Labels are stored flattened
// with a stride of four (low, high, op, final); ChainSizes splits them into heights.
type FeatureRow struct {
	RecordID string `parquet:"name=record_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Mode     string `parquet:"name=mode, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`

	InputIDs      []int32 `parquet:"name=input_ids, type=LIST, valuetype=INT32"`
	AttentionMask []int32 `parquet:"name=attention_mask, type=LIST, valuetype=INT32"`
	TokenTypeIDs  []int32 `parquet:"name=token_type_ids, type=LIST, valuetype=INT32"`
	SpanStarts    []int32 `parquet:"name=span_starts, type=LIST, valuetype=INT32"`
	SpanEnds      []int32 `parquet:"name=span_ends, type=LIST, valuetype=INT32"`

	Labels     []int32 `parquet:"name=labels, type=LIST, valuetype=INT32"`
	ChainSizes []int32 `parquet:"name=chain_sizes, type=LIST, valuetype=INT32"`

	Quantities []float64 `parquet:"name=quantities, type=LIST, valuetype=DOUBLE"`
	Answer     float64   `parquet:"name=answer, type=DOUBLE"`
}

// LabelRow is one canonical label in the flat label table.
type LabelRow struct {
	RecordID string
	Height   int32
	Step     int32
	Low      int32
	High     int32
	Op       int32
	Final    bool
}
