package policyopa

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"medsign/internal/domain"
)

const testPolicy = `package medsign.policy

import rego.v1

default result := {"allow": false, "reasons": ["no rule matched"]}

result := {"allow": true} if {
	input.document_type == "prescription"
	input.certificate.owner_id == input.signer_id
}

result := {"allow": false, "reasons": ["hardware-backed certificate required"]} if {
	input.document_type == "death_certificate"
	not input.certificate.hardware_backed
}
`

func writeBundle(t *testing.T, policy string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(policy), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return dir
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngineFromBundlePath(context.Background(), writeBundle(t, testPolicy), "bundle-test")
	if err != nil {
		t.Fatalf("NewEngineFromBundlePath: %v", err)
	}
	return engine
}

func TestEvaluateAllow(t *testing.T) {
	engine := newTestEngine(t)
	decision, err := engine.Evaluate(context.Background(), domain.PolicyInput{
		DocumentType: "prescription",
		DocumentID:   "rx-1",
		SignerID:     "user-1",
		Certificate:  domain.PolicyCertificate{ID: "cert-1", OwnerID: "user-1"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !decision.Result.Allow {
		t.Fatalf("expected allow, got %+v", decision.Result)
	}
	if decision.BundleID != "bundle-test" || decision.BundleHash == "" {
		t.Fatalf("bundle provenance missing: %+v", decision)
	}
}

func TestEvaluateDenyWithReasons(t *testing.T) {
	engine := newTestEngine(t)
	decision, err := engine.Evaluate(context.Background(), domain.PolicyInput{
		DocumentType: "death_certificate",
		DocumentID:   "dc-1",
		SignerID:     "user-1",
		Certificate:  domain.PolicyCertificate{ID: "cert-1", OwnerID: "user-1", HardwareBacked: false},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Result.Allow {
		t.Fatal("expected deny")
	}
	if len(decision.Result.Reasons) == 0 {
		t.Fatal("deny carries no reasons")
	}
}

func TestEvaluateDefaultDeny(t *testing.T) {
	engine := newTestEngine(t)
	decision, err := engine.Evaluate(context.Background(), domain.PolicyInput{
		DocumentType: "prescription",
		DocumentID:   "rx-1",
		SignerID:     "user-2",
		Certificate:  domain.PolicyCertificate{ID: "cert-1", OwnerID: "user-1"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Result.Allow {
		t.Fatal("expected default deny for a foreign certificate")
	}
}

func TestBundleHashIsStable(t *testing.T) {
	dir := writeBundle(t, testPolicy)
	h1, err := ComputeBundleHashFromPath(dir)
	if err != nil {
		t.Fatalf("ComputeBundleHashFromPath: %v", err)
	}
	h2, err := ComputeBundleHashFromPath(dir)
	if err != nil {
		t.Fatalf("ComputeBundleHashFromPath: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash not stable: %s vs %s", h1, h2)
	}

	other, err := ComputeBundleHashFromPath(writeBundle(t, testPolicy+"\n# amended\n"))
	if err != nil {
		t.Fatalf("ComputeBundleHashFromPath amended: %v", err)
	}
	if other == h1 {
		t.Fatal("different bundles hash identically")
	}
}
