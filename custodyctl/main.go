// Command custodyctl verifies exported chains of custody offline and
// computes evidence content hashes.
//
//	custodyctl verify -file chain.yaml [-content-hash <hex>] [-evidence-id <id>] [-config custody.toml]
//	custodyctl hash -file evidence.bin [-algorithm sha256]
//
// verify takes its signing configuration from CUSTODY_SIGNING_SECRET,
// CUSTODY_HASH_ALGORITHM and CUSTODY_MAC_ALGORITHM, or from a TOML file
// given with -config. It exits 0 when the chain is valid, 1 when it is not
// and 2 on usage or configuration errors.
package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	ledger "github.com/animus-labs/custody/internal/custody"
	"github.com/animus-labs/custody/internal/platform/digest"
)

const (
	exitValid   = 0
	exitInvalid = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: custodyctl <verify|hash> [flags]")
		return exitUsage
	}
	switch args[0] {
	case "verify":
		return runVerify(args[1:], stdout, stderr)
	case "hash":
		return runHash(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		return exitUsage
	}
}

// chainExport is the document produced by exporting an evidence chain.
type chainExport struct {
	EvidenceID  string         `json:"evidenceId"`
	ContentHash string         `json:"contentHash"`
	Events      []ledger.Event `json:"events"`
}

type verifyOutput struct {
	EvidenceID string   `json:"evidenceId"`
	EventCount int      `json:"eventCount"`
	Valid      bool     `json:"valid"`
	Issues     []string `json:"issues"`
}

func runVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "chain export in YAML or JSON")
	contentHash := fs.String("content-hash", "", "expected content hash (overrides the export)")
	evidenceID := fs.String("evidence-id", "", "evidence id (overrides the export)")
	configPath := fs.String("config", "", "TOML signing configuration (defaults to CUSTODY_* env)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(stderr, "verify: -file is required")
		return exitUsage
	}

	cfg, err := loadLedgerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "verify: %v\n", err)
		return exitUsage
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(stderr, "verify: %v\n", err)
		return exitUsage
	}
	export, err := loadChain(raw)
	if err != nil {
		fmt.Fprintf(stderr, "verify: %s: %v\n", *file, err)
		return exitUsage
	}
	if v := strings.TrimSpace(*evidenceID); v != "" {
		export.EvidenceID = v
	}
	if v := strings.TrimSpace(*contentHash); v != "" {
		export.ContentHash = strings.ToLower(v)
	}
	if export.EvidenceID == "" || export.ContentHash == "" {
		fmt.Fprintln(stderr, "verify: evidence id and content hash are required")
		return exitUsage
	}

	report := ledger.NewVerifier(cfg).Verify(export.EvidenceID, export.ContentHash, export.Events)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(verifyOutput{
		EvidenceID: export.EvidenceID,
		EventCount: len(export.Events),
		Valid:      report.Valid,
		Issues:     report.Issues,
	}); err != nil {
		fmt.Fprintf(stderr, "verify: %v\n", err)
		return exitUsage
	}
	if !report.Valid {
		return exitInvalid
	}
	return exitValid
}

// loadChain accepts YAML or JSON. YAML is decoded generically and
// re-encoded as JSON so events go through the same decoder as the API.
// Plain scalars YAML would resolve to numbers stay strings outside details,
// so unquoted hex hashes such as 1234 or 12e5 survive the round trip.
func loadChain(raw []byte) (chainExport, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return chainExport{}, fmt.Errorf("parse: %w", err)
	}
	if len(root.Content) == 0 {
		return chainExport{}, errors.New("empty document")
	}
	keepNumericScalarsAsStrings(&root)

	var doc any
	if err := root.Decode(&doc); err != nil {
		return chainExport{}, fmt.Errorf("parse: %w", err)
	}
	if doc == nil {
		return chainExport{}, errors.New("empty document")
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return chainExport{}, fmt.Errorf("convert: %w", err)
	}
	var export chainExport
	if err := json.Unmarshal(asJSON, &export); err != nil {
		return chainExport{}, fmt.Errorf("decode: %w", err)
	}
	if export.Events == nil {
		export.Events = []ledger.Event{}
	}
	return export, nil
}

func keepNumericScalarsAsStrings(node *yaml.Node) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Style == 0 && (node.Tag == "!!int" || node.Tag == "!!float") {
			node.Tag = "!!str"
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			keepNumericScalarsAsStrings(node.Content[i])
			if node.Content[i].Value == "details" {
				continue
			}
			keepNumericScalarsAsStrings(node.Content[i+1])
		}
	default:
		for _, child := range node.Content {
			keepNumericScalarsAsStrings(child)
		}
	}
}

func runHash(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "file to hash")
	algorithm := fs.String("algorithm", digest.DefaultAlgorithm, "sha256, sha384 or sha512")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(stderr, "hash: -file is required")
		return exitUsage
	}

	hasher, err := digest.NewHasher(*algorithm)
	if err != nil {
		fmt.Fprintf(stderr, "hash: %v\n", err)
		return exitUsage
	}
	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(stderr, "hash: %v\n", err)
		return exitUsage
	}
	defer f.Close()
	if _, err := io.Copy(hasher, f); err != nil {
		fmt.Fprintf(stderr, "hash: %v\n", err)
		return exitUsage
	}
	fmt.Fprintln(stdout, hex.EncodeToString(hasher.Sum(nil)))
	return exitValid
}
