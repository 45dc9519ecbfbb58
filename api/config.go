package api

// Config is the project configuration, usually read from fingerpack.hcl.
//
//	src_dir  = "site"
//	out_dir  = "public"
//	no_hash  = ["\\.html$"]
//	markdown = true
//
//	transformer ".less" {
//	  command = ["lessc", "-"]
//	  output  = ".css"
//	}
type Config struct {
	// SrcDir is the source tree. Defaults to "src".
	SrcDir string `hcl:"src_dir,optional"`
	// OutDir is the output tree. Defaults to "dist".
	OutDir string `hcl:"out_dir,optional"`
	// BaseURL, when set, makes rewritten references absolute URLs.
	BaseURL string `hcl:"base_url,optional"`
	// Hash names the fingerprint hash: sha256 (default), md5 or xxh3.
	Hash string `hcl:"hash,optional"`
	// Scope is "text" (default) or "attributes".
	Scope string `hcl:"scope,optional"`

	// Parsable lists the extensions scanned for references.
	Parsable []string `hcl:"parsable,optional"`
	// NoHash, NoOutput and Ignore are regular expressions matched against
	// slash-separated absolute paths.
	NoHash   []string `hcl:"no_hash,optional"`
	NoOutput []string `hcl:"no_output,optional"`
	Ignore   []string `hcl:"ignore,optional"`

	// Manifest names a JSON file written into OutDir mapping sources to
	// output URLs.
	Manifest string `hcl:"manifest,optional"`
	// Port of the development server. Defaults to 5000.
	Port        int  `hcl:"port,optional"`
	Concurrency int  `hcl:"concurrency,optional"`
	Markdown    bool `hcl:"markdown,optional"`

	Transformers []Transformer `hcl:"transformer,block"`
}

// Transformer runs an external command for every source with extension
// Ext. The source is piped to stdin and stdout becomes the output.
type Transformer struct {
	Ext     string   `hcl:"ext,label"`
	Command []string `hcl:"command"`
	// Output is the produced extension. Empty keeps Ext.
	Output string `hcl:"output,optional"`
}
