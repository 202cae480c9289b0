// Package talon turns declarative descriptions of HTTP APIs into executable
// clients.
//
// An API is declared as plain data: each Endpoint names an operation, an HTTP
// method, a URL template, an ordered parameter list, and a result prototype.
// Compile checks the declaration and produces an immutable PlanSet; each Plan
// knows how to build the operation's request (path substitution, ordered query
// serialization, header layering, body assembly) and how to interpret its
// response (JSON decoding, raw passthrough, or status-only).
//
// Plans are bound to a transport in one of three ways: an owned Client, a
// Wrapper generic over a concrete Transport, or free functions (Exec, Fetch)
// called directly against any Transport. All three share the same build and
// interpret path.
//
// Example:
//
//	api := talon.API{
//	    Name:    "GitHub",
//	    BaseURL: "https://api.github.com",
//	    Endpoints: []talon.Endpoint{{
//	        Name:   "GetRepo",
//	        Method: "GET",
//	        Path:   "/repos/{owner}/{repo}",
//	        Params: []talon.Param{{Name: "owner"}, {Name: "repo"}},
//	        Result: Repo{},
//	    }},
//	}
//
//	c := talon.NewClient(talon.MustCompile(api))
//	repo, err := talon.Invoke[Repo](ctx, c, "GetRepo", "golang", "go")
package talon

// Version is the library version, reported in the default User-Agent header.
const Version = "0.1.0"
