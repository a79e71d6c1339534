package loader_test

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/armspecgen/loader"
)

const (
	instructionsJSON = `{"_meta": {"version": {"architecture": "2025-03"}}, "instructions": [], "assembly_rules": {}}`
	featuresJSON     = `{"_meta": {"version": {"architecture": "2025-03"}}, "parameters": [{"_type": "Parameters.Boolean", "name": "FEAT_SVE", "width": 1}]}`
	registersJSON    = `[{"_type": "Register", "name": "CTR_EL0", "state": "AArch64"}]`
)

var _ = Describe("Loader", func() {
	var (
		tempDir string
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "armspecgen-loader-test")
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	writeFile := func(name, content string) string {
		p := filepath.Join(tempDir, name)
		Expect(os.MkdirAll(filepath.Dir(p), 0o755)).To(Succeed())
		Expect(os.WriteFile(p, []byte(content), 0o644)).To(Succeed())
		return p
	}

	writeTar := func(name string, compress bool, members map[string]string) string {
		p := filepath.Join(tempDir, name)
		f, err := os.Create(p)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = f.Close() }()

		var w io.Writer = f
		var zw *gzip.Writer
		if compress {
			zw = gzip.NewWriter(f)
			w = zw
		}
		tw := tar.NewWriter(w)
		Expect(tw.WriteHeader(&tar.Header{Name: "doc/", Typeflag: tar.TypeDir, Mode: 0o755})).To(Succeed())
		for _, member := range []string{"doc/Instructions.json", "doc/Features.json", "doc/Registers.json", "README"} {
			content, ok := members[member]
			if !ok {
				continue
			}
			Expect(tw.WriteHeader(&tar.Header{
				Name:     member,
				Typeflag: tar.TypeReg,
				Mode:     0o644,
				Size:     int64(len(content)),
			})).To(Succeed())
			_, err := tw.Write([]byte(content))
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(tw.Close()).To(Succeed())
		if zw != nil {
			Expect(zw.Close()).To(Succeed())
		}
		return p
	}

	allMembers := func() map[string]string {
		return map[string]string{
			"doc/Instructions.json": instructionsJSON,
			"doc/Features.json":     featuresJSON,
			"doc/Registers.json":    registersJSON,
			"README":                "not json",
		}
	}

	Describe("FromDir", func() {
		It("should decode the three documents", func() {
			writeFile("Instructions.json", instructionsJSON)
			writeFile("Features.json", featuresJSON)
			writeFile("Registers.json", registersJSON)

			docs, err := loader.FromDir(ctx, tempDir, loader.DefaultPaths())
			Expect(err).NotTo(HaveOccurred())
			Expect(docs.Instructions).To(HaveKey("instructions"))
			Expect(docs.Registers).To(HaveLen(1))

			params := docs.Features["parameters"].([]any)
			Expect(params).To(HaveLen(1))
			width := params[0].(map[string]any)["width"]
			Expect(width).To(Equal(json.Number("1")))
		})

		It("should keep absolute paths", func() {
			other := writeFile("elsewhere/Regs.json", registersJSON)
			writeFile("Instructions.json", instructionsJSON)
			writeFile("Features.json", featuresJSON)

			paths := loader.DefaultPaths()
			paths.Registers = other
			docs, err := loader.FromDir(ctx, tempDir, paths)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs.Registers).To(HaveLen(1))
		})

		It("should fail on a missing file", func() {
			writeFile("Instructions.json", instructionsJSON)
			writeFile("Features.json", featuresJSON)

			_, err := loader.FromDir(ctx, tempDir, loader.DefaultPaths())
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
		})

		It("should fail on malformed JSON", func() {
			writeFile("Instructions.json", "{")
			writeFile("Features.json", featuresJSON)
			writeFile("Registers.json", registersJSON)

			_, err := loader.FromDir(ctx, tempDir, loader.DefaultPaths())
			Expect(err).To(MatchError(ContainSubstring("failed to decode")))
		})

		It("should fail when a document has the wrong shape", func() {
			writeFile("Instructions.json", instructionsJSON)
			writeFile("Features.json", featuresJSON)
			writeFile("Registers.json", `{"registers": []}`)

			_, err := loader.FromDir(ctx, tempDir, loader.DefaultPaths())
			Expect(err).To(MatchError(ContainSubstring("is not a JSON list")))
		})
	})

	Describe("FromFiles", func() {
		It("should stop when the context is cancelled", func() {
			paths := loader.Paths{
				Instructions: writeFile("i.json", instructionsJSON),
				Features:     writeFile("f.json", featuresJSON),
				Registers:    writeFile("r.json", registersJSON),
			}
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := loader.FromFiles(cancelled, paths)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	Describe("FromTar", func() {
		It("should read a plain tarball", func() {
			p := writeTar("spec.tar", false, allMembers())
			docs, err := loader.FromTar(ctx, p, loader.DefaultPaths())
			Expect(err).NotTo(HaveOccurred())
			Expect(docs.Registers).To(HaveLen(1))
		})

		It("should read a gzip compressed tarball", func() {
			p := writeTar("spec.tar.gz", true, allMembers())
			docs, err := loader.FromTar(ctx, p, loader.DefaultPaths())
			Expect(err).NotTo(HaveOccurred())
			Expect(docs.Instructions).To(HaveKey("assembly_rules"))
		})

		It("should match members by full name", func() {
			p := writeTar("spec.tar", false, allMembers())
			docs, err := loader.FromTar(ctx, p, loader.Paths{
				Instructions: "doc/Instructions.json",
				Features:     "doc/Features.json",
				Registers:    "doc/Registers.json",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs.Features).To(HaveKey("parameters"))
		})

		It("should report missing members", func() {
			members := allMembers()
			delete(members, "doc/Features.json")
			p := writeTar("spec.tar.gz", true, members)

			_, err := loader.FromTar(ctx, p, loader.DefaultPaths())
			Expect(errors.Is(err, loader.ErrMissingDocument)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Features.json"))
		})
	})
})
