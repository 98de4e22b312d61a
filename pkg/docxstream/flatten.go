package docxstream

// Flatten collapses a nested value into flat records.
//
// A non-object yields a single empty record. For an object, keys are visited
// in order and every accumulated record is extended:
//
//   - a non-empty array field replicates the records once per element, each
//     copy merged with that element's own flattening under "key." prefixes
//   - an object field replicates the records once per flattened sub-record,
//     with the same prefixing
//   - anything else (scalars, null, empty arrays) is set on every record
//
// Two sibling arrays of length N and M therefore produce N*M records.
func Flatten(value any) []Record {
	obj, ok := normalize(value).(*Object)
	if !ok {
		return []Record{{}}
	}

	records := []Record{make(Record, obj.Len())}
	for _, key := range obj.Keys {
		val := normalize(obj.Values[key])
		next := make([]Record, 0, len(records))

		for _, rec := range records {
			switch v := val.(type) {
			case []any:
				if len(v) == 0 {
					rec[key] = v
					next = append(next, rec)
					continue
				}
				for _, item := range v {
					for _, sub := range Flatten(item) {
						next = append(next, mergePrefixed(rec, key, sub))
					}
				}
			case *Object:
				for _, sub := range Flatten(v) {
					next = append(next, mergePrefixed(rec, key, sub))
				}
			default:
				rec[key] = v
				next = append(next, rec)
			}
		}

		records = next
	}

	return records
}

// mergePrefixed returns a copy of base extended with sub's keys as
// "prefix.key". base is left untouched.
func mergePrefixed(base Record, prefix string, sub Record) Record {
	out := make(Record, len(base)+len(sub))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range sub {
		out[prefix+"."+k] = v
	}
	return out
}
