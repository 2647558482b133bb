package plot

import "github.com/theirongolddev/plotlog/internal/model"

// StatsOf builds the typed view of a plot log from its parse state.
func StatsOf(path string, s Session, offset int64) model.PlotStats {
	rec := s.Record
	st := model.PlotStats{
		FilePath:     path,
		PlotID:       rec.String(FieldID),
		K:            rec.Int(FieldPlotSize),
		Buckets:      rec.Int(FieldBuckets),
		Threads:      rec.Int(FieldThreads),
		TmpDirs:      rec.Strings(FieldTmpDirs),
		State:        s.State(),
		Phase:        s.Phase,
		TotalPhases:  s.TotalPhases,
		TotalSeconds: rec.Float(FieldTotalTimeSeconds),
		CopySeconds:  rec.Float(FieldCopyTimeSeconds),
		CPUPercent:   rec.Float(FieldCPU),
		FinalSizeGiB: rec.Float(FieldFinalFileSize),
		Created:      rec.Time(FieldCreated),
		Modified:     rec.Time(FieldModified),
		Offset:       offset,
	}
	if st.TotalPhases == 0 {
		st.TotalPhases = DefaultTotalPhases
	}

	for n := 1; n <= st.TotalPhases; n++ {
		p := rec.Phase(n)
		if p == nil {
			break
		}
		st.Phases = append(st.Phases, *p)
	}
	if len(st.Phases) > 0 {
		st.StartTime = st.Phases[0].StartTime
	}

	st.EndTime = rec.Time(FieldCopyFinishedTime)
	if st.EndTime.IsZero() {
		st.EndTime = rec.Time(FieldFinishedTime)
	}
	return st
}
