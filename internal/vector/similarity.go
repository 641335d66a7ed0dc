package vector

// InnerProduct scores row against query. Rows are unit length, so this is the
// cosine similarity. Mismatched or empty inputs score 0.
func InnerProduct(query, row []float32) float64 {
	n := len(query)
	if n == 0 || n != len(row) {
		return 0
	}
	row = row[:n]
	var s0, s1, s2, s3 float64
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += float64(query[i]) * float64(row[i])
		s1 += float64(query[i+1]) * float64(row[i+1])
		s2 += float64(query[i+2]) * float64(row[i+2])
		s3 += float64(query[i+3]) * float64(row[i+3])
	}
	for ; i < n; i++ {
		s0 += float64(query[i]) * float64(row[i])
	}
	return s0 + s1 + s2 + s3
}
