package handlers

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"

	"github.com/google/uuid"

	"github.com/TwigBush/reqtrace/internal/httpx"
)

const sampleSize = 1_000

var words = []string{
	"amber", "basil", "cedar", "delta", "ember", "fjord", "gamma", "harbor",
	"indigo", "juniper", "kelp", "lumen", "maple", "nectar", "onyx", "pylon",
}

// Sample serves a large static JSON document of fake key/value pairs.
type Sample struct {
	Size int
}

func NewSample() *Sample { return &Sample{Size: sampleSize} }

func (s *Sample) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(fakeDict(s.Size))
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, httpx.SafeErrMsg(err))
		return
	}
	httpx.WriteRawJSON(w, http.StatusOK, body)
}

// fakeDict returns n entries whose values are either strings or ints.
func fakeDict(n int) map[string]any {
	out := make(map[string]any, n)
	for i := 0; len(out) < n; i++ {
		key := fmt.Sprintf("%s-%d", words[rand.IntN(len(words))], i)
		if rand.IntN(2) == 0 {
			out[key] = uuid.NewString()
		} else {
			out[key] = rand.IntN(10_000)
		}
	}
	return out
}
