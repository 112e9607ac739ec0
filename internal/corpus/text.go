package corpus

import (
	"math"
	"strings"
)

var stopwords = toSet(strings.Fields(`
a an the is are was were be been being have has had do does did will would
could should may might shall can need dare ought used i me my we our you your
he him his she her they them their it its this that these those and or but if
because as until while of at by for with about against between into through
during before after above below to from up down in out on off over under again
further then once here there when where why how all both each few more most
other some such no not only same so than too very just dont also please sir`))

func toSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// Tokenize lowercases text, keeps ASCII letters and digits, stems every word
// and drops stopwords and tokens of two characters or fewer.
func Tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		w = Stem(w)
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// Stem strips common English suffixes. Rules are tried in order and the
// first match wins.
func Stem(w string) string {
	if len(w) <= 3 {
		return w
	}
	switch {
	case strings.HasSuffix(w, "ings"):
		return w[:len(w)-4]
	case strings.HasSuffix(w, "ing"):
		return w[:len(w)-3]
	case strings.HasSuffix(w, "tion"):
		return w[:len(w)-4] + "t"
	case strings.HasSuffix(w, "ness"), strings.HasSuffix(w, "ment"),
		strings.HasSuffix(w, "able"), strings.HasSuffix(w, "ible"):
		return w[:len(w)-4]
	case strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "es"), strings.HasSuffix(w, "ed"),
		strings.HasSuffix(w, "ly"), strings.HasSuffix(w, "er"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "s") && len(w) > 4:
		return w[:len(w)-1]
	}
	return w
}

// HashVector is the cold-start embedding used before any corpus exists.
// Each token is hashed (djb2 with xor, masked to 31 bits) into one of dim
// buckets with a sign taken from bit 7 of the hash.
func HashVector(text string, dim int) []float64 {
	vec := make([]float64, dim)
	if dim <= 0 {
		return vec
	}
	for _, tok := range Tokenize(text) {
		var h uint32 = 5381
		for i := 0; i < len(tok); i++ {
			h = ((h << 5) + h) ^ uint32(tok[i])
			h &= 0x7fffffff
		}
		sign := -1.0
		if (h>>7)&1 == 1 {
			sign = 1
		}
		vec[h%uint32(dim)] += sign
	}
	return normalize(vec)
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// ToFloat32 narrows a vector for storage.
func ToFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}

// ToFloat64 widens a stored vector.
func ToFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}
