package network

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/travigo/railops/pkg/ctdf"
)

type Path struct {
	StationRefs []string
	SectionRefs []string
	Minutes     float64
}

// ShortestPath finds the quickest route between two stations by line speed running time.
// Blocked sections are never used, avoid can exclude further sections.
func (n *Network) ShortestPath(from string, to string, avoid func(section ctdf.TrackSection) bool) (Path, error) {
	if !n.HasStation(from) {
		return Path{}, fmt.Errorf("%w: station %s", ctdf.ErrUnknownLocation, from)
	}
	if !n.HasStation(to) {
		return Path{}, fmt.Errorf("%w: station %s", ctdf.ErrUnknownLocation, to)
	}
	if from == to {
		return Path{StationRefs: []string{from}}, nil
	}

	distance := map[string]float64{}
	previousStation := map[string]string{}
	previousSection := map[string]string{}
	for _, stationRef := range n.stationOrder {
		distance[stationRef] = math.Inf(1)
	}
	distance[from] = 0

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pathItem{station: from, minutes: 0})

	for pq.Len() > 0 {
		current := heap.Pop(pq).(*pathItem)
		if current.minutes > distance[current.station] {
			continue
		}
		if current.station == to {
			break
		}

		for _, sectionRef := range n.adjacency[current.station] {
			section := n.sections[sectionRef]
			if section.Blocked || (avoid != nil && avoid(*section)) {
				continue
			}

			next := section.OtherEnd(current.station)
			alt := distance[current.station] + section.TraversalMinutes()
			if alt < distance[next] {
				distance[next] = alt
				previousStation[next] = current.station
				previousSection[next] = sectionRef
				heap.Push(pq, &pathItem{station: next, minutes: alt})
			}
		}
	}

	if math.IsInf(distance[to], 1) {
		return Path{}, fmt.Errorf("no open path from %s to %s", from, to)
	}

	path := Path{Minutes: distance[to]}
	for station := to; station != from; station = previousStation[station] {
		path.StationRefs = append([]string{station}, path.StationRefs...)
		path.SectionRefs = append([]string{previousSection[station]}, path.SectionRefs...)
	}
	path.StationRefs = append([]string{from}, path.StationRefs...)

	return path, nil
}

type pathItem struct {
	station string
	minutes float64
}

type priorityQueue []*pathItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].minutes == pq[j].minutes {
		return pq[i].station < pq[j].station
	}
	return pq[i].minutes < pq[j].minutes
}
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(*pathItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	item := old[len(old)-1]
	*pq = old[:len(old)-1]
	return item
}
