package object

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// Pretty renders a human-readable form of the commit, in the style of
// `cat-file -p`. The GPG signature, if present, is rendered as a labeled
// armor block located via go-crypto's armor decoder -- used only to find
// the block boundaries for display, never to verify anything.
func (c *Commit) Pretty(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "tree %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(bw, "parent %s\n", p)
	}
	fmt.Fprintf(bw, "author %s\n", c.Author)
	fmt.Fprintf(bw, "committer %s\n", c.Committer)
	if c.GPGSig != "" {
		if block, err := armor.Decode(strings.NewReader(c.GPGSig)); err == nil {
			fmt.Fprintf(bw, "gpgsig [%s]\n", block.Type)
		} else {
			fmt.Fprintf(bw, "gpgsig [unparsed armor block]\n")
		}
	}
	fmt.Fprintln(bw)
	fmt.Fprint(bw, c.Message)
	if !strings.HasSuffix(c.Message, "\n") {
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// Pretty renders a human-readable form of the tag.
func (t *Tag) Pretty(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "object %s\n", t.Object)
	fmt.Fprintf(bw, "type %s\n", t.ObjectType)
	fmt.Fprintf(bw, "tag %s\n", t.Name)
	fmt.Fprintf(bw, "tagger %s\n", t.Tagger)
	fmt.Fprintln(bw)
	fmt.Fprint(bw, t.Message)
	if t.Signature != "" {
		if block, err := armor.Decode(strings.NewReader(t.Signature)); err == nil {
			fmt.Fprintf(bw, "\n[%s]\n", block.Type)
		} else {
			fmt.Fprintln(bw, "\n[unparsed signature block]")
		}
	}
	return bw.Flush()
}
