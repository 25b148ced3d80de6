package marketing

import (
	"context"
	"sync"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/provider"
)

// fakeGen records requests and answers per modality.
type fakeGen struct {
	mu       sync.Mutex
	requests []provider.Request
	fail     map[aimodel.Modality]error
	block    map[aimodel.Modality]bool
}

func (f *fakeGen) Generate(ctx context.Context, req provider.Request) (provider.Output, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.fail[req.Model.Type]
	block := f.block[req.Model.Type]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return provider.Output{}, ctx.Err()
	}
	if err != nil {
		return provider.Output{}, err
	}
	switch req.Model.Type {
	case aimodel.Text:
		return provider.Output{Kind: provider.KindText, Text: "text for " + req.Prompt}, nil
	case aimodel.Image:
		return provider.Output{Kind: provider.KindURL, URL: "https://img/1.png"}, nil
	default:
		return provider.Output{Kind: provider.KindBinary, Data: []byte("bin")}, nil
	}
}

func (f *fakeGen) calls() []provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Request(nil), f.requests...)
}

func (f *fakeGen) lastParams() map[string]any {
	c := f.calls()
	merged := aimodel.MergeParams(c[len(c)-1].Model.Parameters, c[len(c)-1].Params)
	return merged
}
