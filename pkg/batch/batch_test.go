package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/codec"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/design"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/grammar"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/kernel/fake"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/label"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/recon"
)

const boxDoc = `{
  "entities": {
    "sk0": {
      "type": "Sketch",
      "curves": {
        "c0": {"type": "SketchLine"},
        "c1": {"type": "SketchLine"},
        "c2": {"type": "SketchLine"},
        "c3": {"type": "SketchLine"}
      },
      "profiles": {
        "pr0": {
          "loops": [
            {
              "is_outer": true,
              "profile_curves": [
                {"type": "Line3D", "curve": "c0",
                 "start_point": {"x": 0, "y": 0, "z": 0},
                 "end_point": {"x": 1, "y": 0, "z": 0}},
                {"type": "Line3D", "curve": "c1",
                 "start_point": {"x": 1, "y": 0, "z": 0},
                 "end_point": {"x": 1, "y": 1, "z": 0}},
                {"type": "Line3D", "curve": "c2",
                 "start_point": {"x": 1, "y": 1, "z": 0},
                 "end_point": {"x": 0, "y": 1, "z": 0}},
                {"type": "Line3D", "curve": "c3",
                 "start_point": {"x": 0, "y": 1, "z": 0},
                 "end_point": {"x": 0, "y": 0, "z": 0}}
              ]
            }
          ]
        }
      }
    },
    "ex0": {
      "type": "ExtrudeFeature",
      "profiles": [{"profile": "pr0", "sketch": "sk0"}],
      "operation": "NewBodyFeatureOperation",
      "extent_type": "OneSideFeatureExtentType",
      "extent_one": {"distance": {"value": 1.0}}
    }
  },
  "sequence": [
    {"index": 0, "type": "Sketch", "entity": "sk0", "curve": "c0"},
    {"index": 1, "type": "Sketch", "entity": "sk0", "curve": "c1"},
    {"index": 2, "type": "Sketch", "entity": "sk0", "curve": "c2"},
    {"index": 3, "type": "Sketch", "entity": "sk0", "curve": "c3"},
    {"index": 4, "type": "ExtrudeFeature", "entity": "ex0"}
  ]
}`

// filletDoc is a well-formed document carrying a feature kind outside the
// closed grammar. It normalizes cleanly and must be filtered, not failed.
const filletDoc = `{
  "entities": {
    "f0": {"type": "FilletFeature"}
  },
  "sequence": [
    {"index": 0, "type": "FilletFeature", "entity": "f0"}
  ]
}`

func writeFiles(t *testing.T, dir string, files map[string]string) []string {
	t.Helper()
	var paths []string
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func TestEncodeStage(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	fillet := filepath.Join(dir, "fillet.json")
	writeFiles(t, dir, map[string]string{
		"good.json":   boxDoc,
		"bad.json":    "{not json",
		"fillet.json": filletDoc,
	})

	p := New(Config{Workers: 2})
	rep, err := p.Encode(context.Background(), []string{good, bad, fillet}, outDir)
	require.NoError(t, err)

	assert.Equal(t, "encode", rep.Stage)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 1, rep.GrammarVersion)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 1, rep.Succeeded)

	require.Len(t, rep.Results, 3)
	assert.Equal(t, StatusOK, rep.Results[0].Status)
	assert.Equal(t, StatusMalformed, rep.Results[1].Status)
	assert.Equal(t, StatusUnsupported, rep.Results[2].Status)
	assert.NotEmpty(t, rep.Results[2].Verdict)

	// 1 header + 1 sketch + 1 profile + 1 loop + 4 lines + 1 transform + 1 extrude
	assert.Equal(t, 10, rep.Results[0].Commands)

	out, err := os.ReadFile(filepath.Join(outDir, "good.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "E (1, 1, New, One, 1, 0)")

	// Unsupported and malformed inputs leave no output behind.
	_, err = os.Stat(filepath.Join(outDir, "fillet.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestReconstructStage(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	// Produce a valid command sequence through the codec itself.
	tree, err := design.Normalize([]byte(boxDoc))
	require.NoError(t, err)
	cmds, err := codec.Encode(tree, grammar.Default())
	require.NoError(t, err)

	part := filepath.Join(dir, "part.txt")
	broken := filepath.Join(dir, "broken.txt")
	require.NoError(t, os.WriteFile(part, cmds, 0o644))
	require.NoError(t, os.WriteFile(broken, []byte("G (1)\nX (9)\n"), 0o644))

	oracle := &label.Static{Result: label.Labels{
		Continuity: "single", Primary: "block", Secondary: "plain",
		Feature: "none", Description: "A unit cube.",
	}}
	p := New(Config{
		Workers:      2,
		Kernel:       fake.New(),
		Oracle:       oracle,
		TraceVolumes: true,
		PreviewSize:  64,
	})

	rep, err := p.Reconstruct(context.Background(), []string{part, broken}, outDir)
	require.NoError(t, err)
	assert.Equal(t, "reconstruct", rep.Stage)
	assert.Equal(t, 1, rep.Succeeded)

	require.Len(t, rep.Results, 2)
	ok := rep.Results[0]
	assert.Equal(t, StatusOK, ok.Status)
	assert.InDelta(t, 1.0, ok.Volume, 1e-9)
	require.NotNil(t, ok.Labels)
	assert.Equal(t, "block", ok.Labels.Primary)

	assert.Equal(t, StatusDecodeError, rep.Results[1].Status)

	// The fake kernel meshes a box as 12 triangles.
	stl, err := os.Stat(filepath.Join(outDir, "part.stl"))
	require.NoError(t, err)
	assert.Equal(t, int64(84+50*12), stl.Size())
	_, err = os.Stat(filepath.Join(outDir, "part.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "broken.stl"))
	assert.True(t, os.IsNotExist(err))
}

func TestReconstructLabelFailureIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	tree, err := design.Normalize([]byte(boxDoc))
	require.NoError(t, err)
	cmds, err := codec.Encode(tree, grammar.Default())
	require.NoError(t, err)
	part := filepath.Join(dir, "part.txt")
	require.NoError(t, os.WriteFile(part, cmds, 0o644))

	p := New(Config{
		Kernel: fake.New(),
		Oracle: &label.Static{Err: fmt.Errorf("quota exhausted")},
	})
	rep, err := p.Reconstruct(context.Background(), []string{part}, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, rep.Results[0].Status)
	assert.Nil(t, rep.Results[0].Labels)
}

func TestReconstructRequiresKernel(t *testing.T) {
	p := New(Config{})
	_, err := p.Reconstruct(context.Background(), nil, t.TempDir())
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"malformed tree", &design.MalformedTreeError{Msg: "x"}, StatusMalformed},
		{"unsupported", &grammar.UnsupportedFeatureError{}, StatusUnsupported},
		{"decode", &codec.DecodingError{Line: 3, Msg: "x"}, StatusDecodeError},
		{"encode", &codec.EncodingError{Msg: "x"}, StatusDecodeError},
		{"build", &recon.ReconstructionError{Stage: "feature", Msg: "x"}, StatusBuildFailed},
		{"timeout", &recon.TimeoutError{Stage: "build"}, StatusBuildFailed},
		{"wrapped", fmt.Errorf("file a: %w", &design.MalformedTreeError{Msg: "x"}), StatusMalformed},
		{"unknown", fmt.Errorf("plain"), StatusBuildFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(boxDoc), 0o644))

	p := New(Config{})
	rep, err := p.Encode(context.Background(), []string{good}, filepath.Join(dir, "out"))
	require.NoError(t, err)

	path := filepath.Join(dir, "report.json")
	require.NoError(t, rep.WriteJSON(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stage": "encode"`)
	assert.Contains(t, string(data), rep.RunID)
}
