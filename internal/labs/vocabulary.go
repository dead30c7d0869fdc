package labs

// Key names one marker in the closed hormone vocabulary.
type Key string

const (
	Estradiol         Key = "estradiol"
	Progesterone      Key = "progesterone"
	DHEA              Key = "dhea"
	FreeT3            Key = "free_t3"
	TSH               Key = "tsh"
	FreeT4            Key = "free_t4"
	TotalTestosterone Key = "total_testosterone"
	FreeTestosterone  Key = "free_testosterone"
	PSA               Key = "psa"
	VitaminD          Key = "vitamin_d"
	IGF1              Key = "igf_1"
)

// Vocabulary lists every key the parser may produce, in report order.
var Vocabulary = []Key{
	Estradiol,
	Progesterone,
	DHEA,
	FreeT3,
	TSH,
	FreeT4,
	TotalTestosterone,
	FreeTestosterone,
	PSA,
	VitaminD,
	IGF1,
}

// Valid reports whether k belongs to the vocabulary.
func Valid(k Key) bool {
	for _, v := range Vocabulary {
		if v == k {
			return true
		}
	}
	return false
}

// ValueMap maps vocabulary keys to the reading found in a report.
// A missing key means the marker was not mentioned.
type ValueMap map[Key]float64

// Strings converts the map to plain string keys for persistence.
func (m ValueMap) Strings() map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

// FromStrings rebuilds a ValueMap, dropping any key outside the vocabulary.
func FromStrings(in map[string]float64) ValueMap {
	out := make(ValueMap, len(in))
	for k, v := range in {
		if Valid(Key(k)) {
			out[Key(k)] = v
		}
	}
	return out
}
