package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/membercache/internal/typesys"
	"github.com/calvinalkan/membercache/pkg/membercache"
)

// TypeCmd returns the type command.
func TypeCmd(s *Session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("type", flag.ContinueOnError),
		Usage: "type <name> [base]",
		Short: "Create a type, optionally deriving from base",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("%w: type <name> [base]", ErrMissingArgs)
			}

			if len(args) > 2 {
				return fmt.Errorf("%w: type <name> [base]", ErrTooManyArgs)
			}

			base := ""
			if len(args) == 2 {
				base = args[1]
			}

			t, err := s.universe.NewType(args[0], base)
			if err != nil {
				return err
			}

			o.Println("created", formatMRO(t))

			return nil
		},
	}
}

// TypesCmd returns the types command.
func TypesCmd(s *Session) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("types", flag.ContinueOnError),
		Usage:   "types",
		Aliases: []string{"ls"},
		Short:   "List types with their MRO",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			types := s.universe.Types()
			if len(types) == 0 {
				o.Println("(no types)")

				return nil
			}

			for _, t := range types {
				hits, misses := t.Counters()
				o.Printf("%-30s cache=%d/%d class=%d/%d hits=%d misses=%d\n",
					formatMRO(t),
					t.Cache().Size(), t.Cache().Capacity(),
					t.ClassCache().Size(), t.ClassCache().Capacity(),
					hits, misses)
			}

			return nil
		},
	}
}

// DestroyCmd returns the destroy command.
func DestroyCmd(s *Session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("destroy", flag.ContinueOnError),
		Usage: "destroy <type>",
		Short: "Remove a type and finalize its caches",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: destroy <type>", ErrMissingArgs)
			}

			if err := s.universe.Destroy(args[0]); err != nil {
				return err
			}

			o.Println("destroyed", args[0])

			return nil
		},
	}
}

// DefCmd returns the def command.
func DefCmd(s *Session) *Command {
	fs := flag.NewFlagSet("def", flag.ContinueOnError)
	doc := fs.StringP("doc", "d", "", "docstring")
	field := fs.String("field", "object", "member field type (object, bool, int, uint, float, string)")
	offset := fs.Uint64("offset", 0, "member field offset")
	methodFlags := fs.Uint32("flags", 0, "method flags")
	readOnly := fs.Bool("readonly", false, "attr: read-only")
	private := fs.Bool("private", false, "attr: private")

	return &Command{
		Flags: fs,
		Usage: "def <type> <kind> <name> [flags]",
		Short: "Declare a method, getset, member or attr on a type",
		Long: `Declare a member on a type. <kind> is one of:
  method   native method
  getset   native property
  member   instance field (--field, --offset)
  attr     user-class attribute (--readonly, --private)

Declaring a member drops the caches of the type and every type deriving
from it.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("%w: def <type> <kind> <name>", ErrMissingArgs)
			}

			t, err := s.lookupType(args[0])
			if err != nil {
				return err
			}

			kind, name := strings.ToLower(args[1]), args[2]

			switch kind {
			case "method":
				err = t.DefineMethod(membercache.MethodDesc{
					Name:  name,
					Func:  boundMethod(t, name),
					Doc:   *doc,
					Flags: *methodFlags,
				})
			case "getset":
				err = t.DefineGetSet(membercache.GetSetDesc{
					Name: name,
					Get:  func(any) (any, error) { return t.Name() + "." + name, nil },
					Doc:  *doc,
				})
			case "member":
				ft, ok := membercache.ParseFieldType(*field)
				if !ok {
					return fmt.Errorf("%w: %q", ErrUnknownField, *field)
				}

				err = t.DefineMember(membercache.MemberDesc{
					Name:   name,
					Type:   ft,
					Offset: uintptr(*offset),
					Doc:    *doc,
				})
			case "attr":
				var flags uint16
				if *readOnly {
					flags |= membercache.AttrReadOnly
				}

				if *private {
					flags |= membercache.AttrPrivate
				}

				err = t.DefineClassAttr(name, *doc, flags)
			default:
				return fmt.Errorf("%w: %q", ErrUnknownDefKind, kind)
			}

			if err != nil {
				return err
			}

			o.Printf("defined %s %s.%s\n", kind, t.Name(), name)

			return nil
		},
	}
}

func boundMethod(t *typesys.Type, name string) membercache.MethodFunc {
	return func(_ any, args []any) (any, error) {
		return fmt.Sprintf("%s.%s/%d", t.Name(), name, len(args)), nil
	}
}

func formatMRO(t *typesys.Type) string {
	mro := t.MRO()

	names := make([]string, len(mro))
	for i, tp := range mro {
		names[i] = tp.Name()
	}

	return strings.Join(names, " -> ")
}
