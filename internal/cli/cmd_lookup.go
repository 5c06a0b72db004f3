package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/membercache/pkg/membercache"
)

// GetCmd returns the get command, or the cls command when onClass is set.
func GetCmd(s *Session, onClass bool) *Command {
	usage, short := "get <type> <name>...", "Resolve attributes on instances of a type"
	if onClass {
		usage, short = "cls <type> <name>...", "Resolve attributes on the type object"
	}

	return &Command{
		Flags: flag.NewFlagSet(strings.Fields(usage)[0], flag.ContinueOnError),
		Usage: usage,
		Short: short,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("%w: %s", ErrMissingArgs, usage)
			}

			t, err := s.lookupType(args[0])
			if err != nil {
				return err
			}

			for _, name := range args[1:] {
				hitsBefore, _ := t.Counters()

				var (
					slot membercache.Slot
					ok   bool
				)

				if onClass {
					slot, ok = t.FindClassAttr(name)
				} else {
					slot, ok = t.FindAttr(name)
				}

				if !ok {
					o.Printf("%s.%s: not found\n", t.Name(), name)

					continue
				}

				source := "miss"
				if hits, _ := t.Counters(); hits > hitsBefore {
					source = "hit"
				}

				o.Printf("%s [%s]\n", formatSlot(slot), source)
			}

			return nil
		},
	}
}

// ShowCmd returns the show command.
func ShowCmd(s *Session) *Command {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	class := fs.Bool("class", false, "show the class cache instead")

	return &Command{
		Flags: fs,
		Usage: "show <type> [--class]",
		Short: "List the slots cached for a type",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: show <type>", ErrMissingArgs)
			}

			t, err := s.lookupType(args[0])
			if err != nil {
				return err
			}

			c := t.Cache()
			if *class {
				c = t.ClassCache()
			}

			var slots []membercache.Slot

			c.Range(func(slot membercache.Slot) bool {
				slots = append(slots, slot)

				return true
			})

			slices.SortFunc(slots, func(a, b membercache.Slot) int { return strings.Compare(a.Name, b.Name) })

			st := c.Stats()
			o.Printf("%s: %d slots, capacity %d, generation %d, linked=%v\n",
				t.Name(), st.Size, st.Capacity, st.Generation, st.Linked)

			for _, slot := range slots {
				o.Println("  " + formatSlot(slot))
			}

			return nil
		},
	}
}

func formatSlot(s membercache.Slot) string {
	decl := "?"
	if s.Decl != nil {
		decl = s.Decl.Name()
	}

	head := fmt.Sprintf("%-16s %s.%s", s.Kind, decl, s.Name)

	switch {
	case s.Kind == membercache.KindMethod || s.Kind == membercache.KindInstanceMethod:
		d, _ := s.Method()

		return fmt.Sprintf("%s flags=%#x%s", head, d.Flags, docSuffix(d.Doc))
	case s.Kind == membercache.KindGetSet || s.Kind == membercache.KindInstanceGetSet:
		d, _ := s.GetSet()

		return head + docSuffix(d.Doc)
	case s.Kind == membercache.KindMember || s.Kind == membercache.KindInstanceMember:
		d, _ := s.Member()

		return fmt.Sprintf("%s %s@%d%s", head, d.Type, d.Offset, docSuffix(d.Doc))
	default:
		d, ok := s.Attrib()
		if !ok || d.Attr == nil {
			return head
		}

		return fmt.Sprintf("%s addr=%d flags=%#x%s", head, d.Attr.Addr, d.Attr.Flags, docSuffix(d.Attr.Doc))
	}
}

func docSuffix(doc string) string {
	if doc == "" {
		return ""
	}

	return fmt.Sprintf(" %q", doc)
}
