package talon

import "strings"

// binding is a classified parameter: its declaration, the resolved role, and
// the wire key (placeholder name, query key, header name, or multipart field
// name, depending on the role).
type binding struct {
	param Param
	role  Role
	key   string
}

// supportsBody reports whether a verb carries a request body. Custom verbs
// never do; an inferred or explicit body parameter on any other verb is a
// compile error.
func supportsBody(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// validMethodToken reports whether method is a legal HTTP token.
func validMethodToken(method string) bool {
	if method == "" {
		return false
	}
	for i := 0; i < len(method); i++ {
		c := method[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}

func validRole(r Role) bool {
	switch r {
	case RoleAuto, RolePath, RoleQuery, RoleHeader, RoleHeaderBag,
		RoleBody, RoleForm, RoleMultipart:
		return true
	}
	return false
}

// classifyParams resolves every parameter's role. Precedence: an explicit
// role is authoritative and never re-checked against the template; an
// unhinted parameter whose name exactly matches a placeholder becomes a path
// parameter; a single remaining parameter becomes the JSON body when the
// verb takes one. Anything left over is a compile error, and two or more
// leftovers are a PrecedenceError naming the offenders and the available
// placeholders.
func classifyParams(op, method string, params []Param, placeholders []string) ([]binding, error) {
	unique := uniquePlaceholders(placeholders)
	phSet := make(map[string]bool, len(unique))
	for _, n := range unique {
		phSet[n] = true
	}

	seen := make(map[string]bool, len(params))
	bindings := make([]binding, len(params))
	var leftovers []int

	for i, p := range params {
		if p.Name == "" {
			return nil, compileErrorf(op, "", CodeEmptyName, "parameter %d has no name", i)
		}
		if seen[p.Name] {
			return nil, compileErrorf(op, p.Name, CodeDuplicateParam, "declared twice")
		}
		seen[p.Name] = true
		if !validRole(p.In) {
			return nil, compileErrorf(op, p.Name, CodeInvalidRole, "unknown role %q", p.In)
		}
		if !validFormat(p.Format) {
			return nil, compileErrorf(op, p.Name, CodeInvalidFormat, "unknown collection format %q", p.Format)
		}
		if !validRename(p.Rename) {
			return nil, compileErrorf(op, p.Name, CodeInvalidRename, "unknown rename rule %q", p.Rename)
		}

		role := p.In
		if role == RoleAuto {
			if phSet[p.Name] {
				role = RolePath
			} else {
				leftovers = append(leftovers, i)
				continue
			}
		}
		bindings[i] = binding{param: p, role: role, key: wireKey(p)}
	}

	switch len(leftovers) {
	case 0:
	case 1:
		i := leftovers[0]
		p := params[i]
		if !supportsBody(method) {
			return nil, compileErrorf(op, p.Name, CodeUnclassifiable,
				"matches no placeholder (available: %s) and %s does not take a request body",
				placeholderList(unique), method)
		}
		bindings[i] = binding{param: p, role: RoleBody, key: p.Name}
	default:
		names := make([]string, len(leftovers))
		for j, i := range leftovers {
			names[j] = params[i].Name
		}
		return nil, &PrecedenceError{
			CompileError: CompileError{
				Op:      op,
				Code:    CodeAmbiguousParams,
				Message: "multiple parameters left unclassified",
			},
			Params:       names,
			Placeholders: unique,
		}
	}

	if err := checkBindings(op, method, bindings, unique); err != nil {
		return nil, err
	}
	return bindings, nil
}

// checkBindings enforces the cross-parameter rules: every placeholder bound
// exactly once, at most one body producer, body roles only on body verbs,
// and role-specific options only where they apply.
func checkBindings(op, method string, bindings []binding, placeholders []string) error {
	pathCount := make(map[string]int, len(placeholders))
	var bodyParams []string
	multipartSeen := false

	for _, b := range bindings {
		switch b.role {
		case RolePath:
			pathCount[b.key]++
		case RoleBody, RoleForm:
			bodyParams = append(bodyParams, b.param.Name)
		case RoleMultipart:
			if !multipartSeen {
				multipartSeen = true
				bodyParams = append(bodyParams, b.param.Name)
			}
		}

		switch b.role {
		case RoleBody, RoleForm, RoleMultipart:
			if !supportsBody(method) {
				return compileErrorf(op, b.param.Name, CodeBodyNotAllowed,
					"%s does not take a request body", method)
			}
		}
		if b.param.Format != "" && b.role != RoleQuery {
			return compileErrorf(op, b.param.Name, CodeInvalidFormat,
				"collection format applies to query parameters, not %s", b.role)
		}
		if b.param.Rename != "" && b.role != RoleQuery && b.role != RoleForm {
			return compileErrorf(op, b.param.Name, CodeInvalidRename,
				"rename rule applies to query and form records, not %s", b.role)
		}
	}

	if len(bodyParams) > 1 {
		return compileErrorf(op, "", CodeMultipleBodies,
			"parameters [%s] each produce a request body; only one is allowed",
			strings.Join(bodyParams, ", "))
	}

	for _, ph := range placeholders {
		switch pathCount[ph] {
		case 0:
			return compileErrorf(op, "", CodeUnboundPlaceholder,
				"placeholder {%s} is not bound by any parameter", ph)
		case 1:
		default:
			return compileErrorf(op, "", CodeDuplicateBinding,
				"placeholder {%s} is bound by %d parameters", ph, pathCount[ph])
		}
	}
	return nil
}

func wireKey(p Param) string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Name
}

func placeholderList(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
